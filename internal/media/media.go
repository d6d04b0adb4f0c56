// Package media abstracts microphone and camera capture for a session.
//
// The service itself has no audio devices; capture happens at the edge (the
// browser or a CLI client) and reaches the session through these interfaces.
package media

import (
	"context"
	"errors"
	"sync"
)

// FrameSamples is the fixed outbound audio frame size.
const FrameSamples = 4096

// ErrPermissionDenied is returned when a capture device cannot be acquired.
var ErrPermissionDenied = errors.New("media: capture permission denied")

// MicSource delivers captured float PCM samples. Slices may be any length;
// the session re-chunks them into fixed frames.
type MicSource interface {
	// Samples returns the capture channel. It is closed when the source
	// ends.
	Samples() <-chan []float32

	// Close releases the device. Idempotent.
	Close() error
}

// Camera captures still frames for the 1 Hz video cycle.
type Camera interface {
	// Frame returns the current view as compressed JPEG.
	Frame() ([]byte, error)

	// Close releases the device. Idempotent.
	Close() error
}

// Provider acquires capture devices at session start.
type Provider interface {
	// OpenMic acquires the microphone. Failure maps to ErrPermissionDenied.
	OpenMic(ctx context.Context) (MicSource, error)

	// OpenCamera acquires the camera, or returns (nil, nil) when the
	// session runs audio-only.
	OpenCamera(ctx context.Context) (Camera, error)
}

// PushMic is a MicSource fed by an external producer (the websocket handler
// pushes decoded client frames into it).
type PushMic struct {
	mu     sync.Mutex
	ch     chan []float32
	closed bool
}

// NewPushMic creates a push-fed microphone source.
func NewPushMic(buffer int) *PushMic {
	return &PushMic{ch: make(chan []float32, buffer)}
}

// Push delivers captured samples. Returns false once the source is closed
// or when the consumer is not keeping up (the frame is dropped rather than
// blocking the capture path).
func (m *PushMic) Push(samples []float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.ch <- samples:
		return true
	default:
		return false
	}
}

// Samples returns the capture channel.
func (m *PushMic) Samples() <-chan []float32 {
	return m.ch
}

// Close ends the source. Idempotent.
func (m *PushMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
	return nil
}

// StaticProvider is a Provider over pre-built sources; tests and the
// websocket handler use it.
type StaticProvider struct {
	Mic    MicSource
	Cam    Camera
	MicErr error
	CamErr error
}

// OpenMic returns the configured microphone source.
func (p *StaticProvider) OpenMic(context.Context) (MicSource, error) {
	if p.MicErr != nil {
		return nil, p.MicErr
	}
	if p.Mic == nil {
		return nil, ErrPermissionDenied
	}
	return p.Mic, nil
}

// OpenCamera returns the configured camera source, if any.
func (p *StaticProvider) OpenCamera(context.Context) (Camera, error) {
	if p.CamErr != nil {
		return nil, p.CamErr
	}
	return p.Cam, nil
}
