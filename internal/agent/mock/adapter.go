// Package mock provides a scripted agent adapter for tests and for running
// the service without Gemini credentials. It simulates realistic live-session
// behavior: progressive transcription fragments for both directions, one
// turn-complete signal per exchange, and a short burst of response audio.
package mock

import (
	"context"
	"io"
	"sync"

	"ai-patient-sim-service/internal/agent"
	"ai-patient-sim-service/internal/audio"
)

// Exchange is one scripted back-and-forth between student and patient.
type Exchange struct {
	InputFragments  []string // progressive student transcription
	OutputFragments []string // progressive patient transcription
	AudioChunks     int      // response audio chunks emitted before the turn ends
}

// DefaultScript simulates the opening of a history-taking encounter.
var DefaultScript = []Exchange{
	{
		InputFragments:  []string{"Hello, ", "what brings ", "you in today?"},
		OutputFragments: []string{"I've got ", "this terrible headache."},
		AudioChunks:     3,
	},
	{
		InputFragments:  []string{"Can you tell me ", "more about it?"},
		OutputFragments: []string{"It started this morning, ", "a throbbing pain behind my right eye."},
		AudioChunks:     4,
	},
	{
		InputFragments:  []string{"Anything make ", "it worse?"},
		OutputFragments: []string{"Bright lights, ", "definitely."},
		AudioChunks:     2,
	},
}

// Dialer hands out scripted connections.
type Dialer struct {
	// Script overrides DefaultScript when non-nil.
	Script []Exchange
	// ConnectErr, when set, makes Connect fail. Tests use it to drive the
	// session's failure path.
	ConnectErr error

	mu    sync.Mutex
	conns []*Conn
}

// Connect returns a new scripted connection.
func (d *Dialer) Connect(_ context.Context, cfg agent.SessionConfig) (agent.Conn, error) {
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	script := d.Script
	if script == nil {
		script = DefaultScript
	}
	c := NewConn(script)
	c.Config = cfg
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Conns returns every connection the dialer has produced.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Conn is a scripted agent connection. Each audio frame received advances
// the script by one event, mimicking transcription keeping pace with speech.
type Conn struct {
	Config agent.SessionConfig

	mu         sync.Mutex
	events     []*agent.ServerEvent // remaining scripted events
	ch         chan *agent.ServerEvent
	audioSent  int
	imagesSent int
	closed     bool
	closeCount int
}

// NewConn builds a connection that will play the given script.
func NewConn(script []Exchange) *Conn {
	var events []*agent.ServerEvent
	for _, ex := range script {
		for _, f := range ex.InputFragments {
			events = append(events, &agent.ServerEvent{Kind: agent.EventInputTranscription, Text: f})
		}
		for _, f := range ex.OutputFragments {
			events = append(events, &agent.ServerEvent{Kind: agent.EventOutputTranscription, Text: f})
		}
		for i := 0; i < ex.AudioChunks; i++ {
			events = append(events, &agent.ServerEvent{
				Kind:  agent.EventAudio,
				Audio: silentChunk(1200), // 50ms at 24kHz
			})
		}
		events = append(events, &agent.ServerEvent{Kind: agent.EventTurnComplete})
	}
	return &Conn{
		events: events,
		ch:     make(chan *agent.ServerEvent, len(events)),
	}
}

func silentChunk(frames int) audio.Blob {
	return audio.BlobFromPCM(make([]byte, frames*2), audio.PlaybackSampleRate)
}

// SendAudio records the frame and releases the next scripted event.
func (c *Conn) SendAudio(_ context.Context, _ audio.Blob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	c.audioSent++
	c.release()
	return nil
}

// SendImage records the frame; video does not advance the script.
func (c *Conn) SendImage(_ context.Context, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	c.imagesSent++
	return nil
}

// release moves one scripted event into the receive channel.
// Caller holds c.mu.
func (c *Conn) release() {
	if len(c.events) == 0 {
		return
	}
	ev := c.events[0]
	c.events = c.events[1:]
	c.ch <- ev
}

// ReleaseAll flushes the whole remaining script to the receiver. Tests use
// it to drive a full conversation without pacing audio frames.
func (c *Conn) ReleaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.events) > 0 {
		c.release()
	}
}

// Receive blocks for the next event; io.EOF after Close.
func (c *Conn) Receive() (*agent.ServerEvent, error) {
	ev, ok := <-c.ch
	if !ok {
		return nil, io.EOF
	}
	return ev, nil
}

// Close ends the scripted session. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.ch)
	return nil
}

// AudioFrames returns how many audio frames were sent.
func (c *Conn) AudioFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioSent
}

// ImageFrames returns how many image frames were sent.
func (c *Conn) ImageFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imagesSent
}

// CloseCount returns how many times Close was invoked.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}
