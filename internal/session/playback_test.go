package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"ai-patient-sim-service/internal/audio"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSink struct {
	mu     sync.Mutex
	starts []time.Time
	err    error
}

func (s *fakeSink) Play(_ *audio.PCMBuffer, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, at)
	return s.err
}

func (s *fakeSink) Starts() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.starts...)
}

// halfSecondChunk is 12000 frames at 24kHz, i.e. 500ms of audio.
func halfSecondChunk() *audio.PCMBuffer {
	return &audio.PCMBuffer{
		Channels:   [][]float32{make([]float32, 12000)},
		SampleRate: audio.PlaybackSampleRate,
	}
}

func TestScheduler_BackToBack(t *testing.T) {
	clock := newFakeClock()
	sink := &fakeSink{}
	sched := NewScheduler(sink, clock)
	t0 := clock.Now()

	first := sched.Schedule(halfSecondChunk())
	if !first.Equal(t0) {
		t.Errorf("first chunk should start immediately, got %v want %v", first, t0)
	}

	// Queued behind the first chunk, no gap.
	second := sched.Schedule(halfSecondChunk())
	if want := t0.Add(500 * time.Millisecond); !second.Equal(want) {
		t.Errorf("second chunk start = %v, want %v", second, want)
	}
}

func TestScheduler_RestartsAfterDrain(t *testing.T) {
	clock := newFakeClock()
	sched := NewScheduler(&fakeSink{}, clock)

	sched.Schedule(halfSecondChunk())
	clock.Advance(2 * time.Second)

	// Queue drained; the next chunk starts now, not at the stale end mark.
	got := sched.Schedule(halfSecondChunk())
	if !got.Equal(clock.Now()) {
		t.Errorf("post-drain chunk start = %v, want %v", got, clock.Now())
	}
}

func TestScheduler_Speaking(t *testing.T) {
	clock := newFakeClock()
	sched := NewScheduler(&fakeSink{}, clock)

	if sched.Speaking() {
		t.Error("empty scheduler should not be speaking")
	}

	sched.Schedule(halfSecondChunk())
	sched.Schedule(halfSecondChunk())
	if !sched.Speaking() {
		t.Error("expected speaking while audio is queued")
	}

	clock.Advance(900 * time.Millisecond)
	if !sched.Speaking() {
		t.Error("expected speaking until the last chunk ends")
	}

	clock.Advance(200 * time.Millisecond)
	if sched.Speaking() {
		t.Error("expected silence after the queue drains")
	}
}

func TestScheduler_SinkErrorIsTransient(t *testing.T) {
	clock := newFakeClock()
	sink := &fakeSink{err: errors.New("device busy")}
	sched := NewScheduler(sink, clock)

	sched.Schedule(halfSecondChunk())
	if !sched.Speaking() {
		t.Error("timeline should advance even when the sink rejects a chunk")
	}

	second := sched.Schedule(halfSecondChunk())
	if want := clock.Now().Add(500 * time.Millisecond); !second.Equal(want) {
		t.Errorf("second chunk start = %v, want %v", second, want)
	}
	if got := len(sink.Starts()); got != 2 {
		t.Errorf("sink should still see every chunk, got %d", got)
	}
}
