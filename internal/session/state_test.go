package session

import (
	"errors"
	"testing"
)

func TestLifecycle_NormalPath(t *testing.T) {
	var l lifecycle
	if l.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", l.State())
	}
	if err := l.beginConnect(); err != nil {
		t.Fatalf("beginConnect: %v", err)
	}
	if l.State() != StateConnecting {
		t.Errorf("expected CONNECTING, got %s", l.State())
	}
	if err := l.beginStreaming(); err != nil {
		t.Fatalf("beginStreaming: %v", err)
	}
	if l.State() != StateStreaming {
		t.Errorf("expected STREAMING, got %s", l.State())
	}
	if !l.close() {
		t.Error("expected close to succeed from STREAMING")
	}
	if l.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", l.State())
	}
}

func TestLifecycle_DoubleConnect(t *testing.T) {
	var l lifecycle
	if err := l.beginConnect(); err != nil {
		t.Fatalf("beginConnect: %v", err)
	}
	if err := l.beginConnect(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestLifecycle_ConnectAfterFinished(t *testing.T) {
	var l lifecycle
	l.beginConnect()
	l.close()
	if err := l.beginConnect(); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("expected ErrSessionFinished, got %v", err)
	}
}

func TestLifecycle_StreamingRequiresConnecting(t *testing.T) {
	var l lifecycle
	if err := l.beginStreaming(); err == nil {
		t.Error("expected error streaming from IDLE")
	}
}

func TestLifecycle_FailIsTerminal(t *testing.T) {
	var l lifecycle
	l.beginConnect()
	if !l.fail() {
		t.Fatal("expected fail to succeed from CONNECTING")
	}
	if l.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", l.State())
	}
	if l.fail() {
		t.Error("expected second fail to report false")
	}
	if l.close() {
		t.Error("close must not override FAILED")
	}
	if l.State() != StateFailed {
		t.Errorf("expected FAILED to stick, got %s", l.State())
	}
}

func TestLifecycle_CloseIdempotent(t *testing.T) {
	var l lifecycle
	l.beginConnect()
	l.beginStreaming()
	if !l.close() {
		t.Fatal("first close should succeed")
	}
	if l.close() {
		t.Error("second close should report false")
	}
	if l.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateConnecting, "CONNECTING"},
		{StateStreaming, "STREAMING"},
		{StateClosed, "CLOSED"},
		{StateFailed, "FAILED"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
