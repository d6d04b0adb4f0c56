// Package session manages one bidirectional real-time conversation with the
// remote agent and produces the encounter transcript when it ends.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateIdle - session created, nothing acquired yet.
	StateIdle State = iota
	// StateConnecting - acquiring capture devices and dialing the agent.
	StateConnecting
	// StateStreaming - duty cycles running, transcript accumulating.
	StateStreaming
	// StateClosed - ended normally; transcript handed off.
	StateClosed
	// StateFailed - terminal for this connection attempt. A retry is a new
	// session, not a resume.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED and FAILED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// Errors for invalid transitions.
var (
	ErrAlreadyStarted  = errors.New("session already started")
	ErrSessionFinished = errors.New("session already finished")
)

// lifecycle is the session state machine.
//
//	IDLE → CONNECTING → STREAMING → CLOSED
//	          │             │
//	          └─────────────┴──→ FAILED (terminal)
//
// Thread-safe; teardown paths race against the receive loop.
type lifecycle struct {
	mu    sync.RWMutex
	state State
}

func (l *lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// beginConnect moves IDLE → CONNECTING.
func (l *lifecycle) beginConnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		if l.state.IsTerminal() {
			return ErrSessionFinished
		}
		return ErrAlreadyStarted
	}
	l.state = StateConnecting
	return nil
}

// beginStreaming moves CONNECTING → STREAMING.
func (l *lifecycle) beginStreaming() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateConnecting {
		return fmt.Errorf("cannot stream from state %s", l.state)
	}
	l.state = StateStreaming
	return nil
}

// fail moves to FAILED from any non-terminal state.
// Returns false when already terminal.
func (l *lifecycle) fail() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateFailed
	return true
}

// close moves to CLOSED from any non-terminal state. Idempotent; a session
// that already failed stays FAILED.
func (l *lifecycle) close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateClosed
	return true
}
