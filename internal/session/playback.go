package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-patient-sim-service/internal/audio"
)

// Clock abstracts time for the playback scheduler so tests can drive it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// AudioSink plays a decoded chunk starting at the given time. Implementations
// own the actual output device; the scheduler only computes timing.
type AudioSink interface {
	Play(buf *audio.PCMBuffer, at time.Time) error
}

// Scheduler places incoming patient audio chunks back to back on the sink's
// timeline. Each chunk starts at the end of the previous one, or immediately
// when the queue has drained, so consecutive chunks of one utterance play
// without gaps.
type Scheduler struct {
	mu        sync.Mutex
	clock     Clock
	sink      AudioSink
	nextStart time.Time
}

// NewScheduler builds a scheduler over the given sink. A nil clock means the
// wall clock.
func NewScheduler(sink AudioSink, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{clock: clock, sink: sink}
}

// Schedule enqueues one chunk and returns its start time. Sink errors are
// transient: the chunk is skipped, the timeline still advances, and the
// session keeps running.
func (s *Scheduler) Schedule(buf *audio.PCMBuffer) time.Time {
	s.mu.Lock()
	now := s.clock.Now()
	start := s.nextStart
	if now.After(start) {
		start = now
	}
	s.nextStart = start.Add(time.Duration(buf.Duration() * float64(time.Second)))
	s.mu.Unlock()

	if err := s.sink.Play(buf, start); err != nil {
		log.Warn().Err(err).Msg("audio sink rejected chunk, skipping")
	}
	return start
}

// Speaking reports whether scheduled audio extends past the current instant,
// i.e. the patient is (or is about to be) audibly talking.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Before(s.nextStart)
}
