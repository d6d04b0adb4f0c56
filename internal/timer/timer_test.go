package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCountdown_FiresExactlyOnce(t *testing.T) {
	var fired int32
	done := make(chan struct{})

	c := NewWithInterval(5, time.Millisecond, func() {
		if atomic.AddInt32(&fired, 1) == 1 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}

	// Give any stray ticks a chance to misfire.
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("expected exactly 1 timeout invocation, got %d", n)
	}
	if r := c.Remaining(); r != 0 {
		t.Errorf("expected 0 remaining, got %d", r)
	}
}

func TestCountdown_StopPreventsTimeout(t *testing.T) {
	var fired int32
	c := NewWithInterval(3, time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	c.Stop()
	time.Sleep(20 * time.Millisecond)

	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("timeout fired %d times after Stop", n)
	}
}

func TestCountdown_StopIsIdempotent(t *testing.T) {
	c := NewWithInterval(10, time.Millisecond, func() {})
	c.Stop()
	c.Stop()
	c.Stop()
}

func TestCountdown_FormatRemaining(t *testing.T) {
	tests := []struct {
		ticks int
		want  string
	}{
		{720, "12:00"},
		{61, "01:01"},
		{9, "00:09"},
		{0, "00:00"},
	}
	for _, tt := range tests {
		c := &Countdown{remaining: tt.ticks, stop: make(chan struct{})}
		if got := c.FormatRemaining(); got != tt.want {
			t.Errorf("FormatRemaining(%d) = %q, want %q", tt.ticks, got, tt.want)
		}
	}
}
