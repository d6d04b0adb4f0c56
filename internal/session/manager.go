package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-patient-sim-service/internal/agent"
	"ai-patient-sim-service/internal/audio"
	"ai-patient-sim-service/internal/events"
	"ai-patient-sim-service/internal/media"
	"ai-patient-sim-service/internal/models"
	"ai-patient-sim-service/internal/observability/metrics"
	"ai-patient-sim-service/internal/timer"
	"ai-patient-sim-service/internal/transcript"
)

// ErrConnectionFailed wraps agent dial failures so callers can offer a
// user-actionable retry.
var ErrConnectionFailed = errors.New("could not reach the patient agent")

const (
	// TurnEventType labels completed-turn Kafka events.
	TurnEventType = "encounter.transcript.turn"

	defaultFrameInterval = time.Second
)

// Options configures a session Manager.
type Options struct {
	EncounterID string
	Case        models.PatientCase

	Dialer agent.Dialer
	Media  media.Provider

	// Sink receives decoded patient audio. Optional; nil discards playback
	// (transcript-only clients).
	Sink AudioSink

	// Publisher emits turn events. Optional.
	Publisher *events.Publisher

	// Clock drives the playback timeline. Nil means the wall clock.
	Clock Clock

	// TimerTicks is the session length in timer intervals. Zero means the
	// default 12 minutes.
	TimerTicks int
	// TimerInterval is the countdown granularity. Zero means one second.
	TimerInterval time.Duration

	// FrameInterval is the camera duty cycle. Zero means one second.
	FrameInterval time.Duration

	// NowMillis supplies transcript timestamps. Nil means wall time.
	NowMillis func() int64

	// OnTurn is invoked from the receive loop each time a completed turn
	// is flushed into the transcript. Optional.
	OnTurn func(entries []models.TranscriptEntry)

	// OnEnd is invoked exactly once after a normal end (manual or timer
	// expiry) with the final transcript. Not invoked on failure.
	OnEnd func(entries []models.TranscriptEntry)

	Metrics *metrics.Metrics
}

// Manager owns one encounter session: capture, the agent connection, the
// receive loop, the countdown and the transcript. One Manager per encounter;
// a failed session is replaced, never restarted.
type Manager struct {
	opts          Options
	frameInterval time.Duration
	nowMillis     func() int64
	metrics       *metrics.Metrics

	state     lifecycle
	builder   *transcript.Builder
	sched     *Scheduler
	countdown *timer.Countdown

	scratchMu sync.Mutex
	scratch   transcript.TurnState

	mic  media.MicSource
	cam  media.Camera
	conn agent.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	endOnce   sync.Once
	startedAt time.Time

	errMu   sync.Mutex
	lastErr error
}

// New creates a session manager. Start must be called before anything else.
func New(opts Options) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	m := &Manager{
		opts:          opts,
		frameInterval: opts.FrameInterval,
		nowMillis:     opts.NowMillis,
		metrics:       opts.Metrics,
		builder:       transcript.NewBuilder(),
	}
	if m.frameInterval <= 0 {
		m.frameInterval = defaultFrameInterval
	}
	if m.nowMillis == nil {
		m.nowMillis = func() int64 { return time.Now().UnixMilli() }
	}
	m.sched = NewScheduler(sinkOrDiscard(opts.Sink), opts.Clock)
	return m
}

type discardSink struct{}

func (discardSink) Play(*audio.PCMBuffer, time.Time) error { return nil }

func sinkOrDiscard(s AudioSink) AudioSink {
	if s == nil {
		return discardSink{}
	}
	return s
}

// Start acquires capture devices, dials the agent and launches the duty
// cycles. On any failure the session lands in FAILED with everything
// acquired so far released.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.state.beginConnect(); err != nil {
		return err
	}
	m.metrics.RecordSessionStart()
	m.startedAt = time.Now()

	mic, err := m.opts.Media.OpenMic(ctx)
	if err != nil {
		return m.abort(fmt.Errorf("microphone: %w", err))
	}
	m.mic = mic

	cam, err := m.opts.Media.OpenCamera(ctx)
	if err != nil {
		mic.Close()
		return m.abort(fmt.Errorf("camera: %w", err))
	}
	m.cam = cam

	conn, err := m.opts.Dialer.Connect(ctx, agent.SessionConfig{
		EncounterID: m.opts.EncounterID,
		Persona:     m.opts.Case.Script,
		Voice:       agent.VoiceForGender(m.opts.Case.Gender),
	})
	if err != nil {
		m.metrics.AgentConnectErrors.Inc()
		mic.Close()
		if cam != nil {
			cam.Close()
		}
		return m.abort(fmt.Errorf("%w: %v", ErrConnectionFailed, err))
	}
	m.conn = conn

	if err := m.state.beginStreaming(); err != nil {
		// Lost a race with teardown; give everything back.
		conn.Close()
		mic.Close()
		if cam != nil {
			cam.Close()
		}
		return err
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	ticks := m.opts.TimerTicks
	if ticks <= 0 {
		ticks = int(timer.DefaultDuration / time.Second)
	}
	onTimeout := func() {
		log.Info().Str("encounterId", m.opts.EncounterID).Msg("Session timer expired")
		m.shutdown(nil)
	}
	if m.opts.TimerInterval > 0 {
		m.countdown = timer.NewWithInterval(ticks, m.opts.TimerInterval, onTimeout)
	} else {
		m.countdown = timer.New(ticks, onTimeout)
	}

	m.wg.Add(2)
	go m.captureLoop()
	go m.receiveLoop()
	if m.cam != nil {
		m.wg.Add(1)
		go m.cameraLoop()
	}

	log.Info().
		Str("encounterId", m.opts.EncounterID).
		Int("caseId", m.opts.Case.ID).
		Str("patient", m.opts.Case.Name).
		Bool("camera", m.cam != nil).
		Msg("Session streaming")
	return nil
}

// abort marks a start-phase failure. Resources are released by the caller.
func (m *Manager) abort(err error) error {
	m.setErr(err)
	m.state.fail()
	m.metrics.RecordSessionEnd(false, time.Since(m.startedAt).Seconds())
	log.Error().Err(err).Str("encounterId", m.opts.EncounterID).Msg("Session failed to start")
	return err
}

// End finishes the session and returns the final transcript. Idempotent;
// later calls return the same transcript.
func (m *Manager) End() []models.TranscriptEntry {
	m.shutdown(nil)
	return m.builder.Snapshot()
}

// Wait blocks until all session goroutines have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// shutdown tears the session down exactly once. A nil cause is a normal end
// (manual or timer); a non-nil cause is a mid-stream failure.
func (m *Manager) shutdown(cause error) {
	m.endOnce.Do(func() {
		if cause != nil {
			m.setErr(cause)
			m.state.fail()
		} else {
			m.state.close()
		}
		if m.countdown != nil {
			m.countdown.Stop()
		}
		if m.cancel != nil {
			m.cancel()
		}
		if m.mic != nil {
			if err := m.mic.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing microphone")
			}
		}
		if m.cam != nil {
			if err := m.cam.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing camera")
			}
		}
		if m.conn != nil {
			if err := m.conn.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing agent connection")
			}
		}

		// The agent may never signal turn completion for the last
		// exchange; whatever accrued still belongs in the transcript.
		m.flushTurn()

		ok := cause == nil
		m.metrics.RecordSessionEnd(ok, time.Since(m.startedAt).Seconds())
		log.Info().
			Str("encounterId", m.opts.EncounterID).
			Str("state", m.state.State().String()).
			Int("transcriptLines", m.builder.Len()).
			Msg("Session ended")

		if ok && m.opts.OnEnd != nil {
			m.opts.OnEnd(m.builder.Snapshot())
		}
	})
}

// captureLoop re-chunks microphone samples into fixed frames and forwards
// them to the agent.
func (m *Manager) captureLoop() {
	defer m.wg.Done()
	frame := make([]float32, 0, 2*media.FrameSamples)
	for {
		select {
		case <-m.ctx.Done():
			return
		case samples, ok := <-m.mic.Samples():
			if !ok {
				return
			}
			frame = append(frame, samples...)
			for len(frame) >= media.FrameSamples {
				m.sendFrame(frame[:media.FrameSamples])
				frame = append(frame[:0], frame[media.FrameSamples:]...)
			}
		}
	}
}

func (m *Manager) sendFrame(samples []float32) {
	blob := audio.EncodeOutbound(samples)
	if err := m.conn.SendAudio(m.ctx, blob); err != nil {
		// Frame sends are fire-and-forget; a broken connection surfaces
		// through the receive loop.
		m.metrics.AudioSendErrors.Inc()
		log.Warn().Err(err).Str("encounterId", m.opts.EncounterID).Msg("Dropped audio frame")
		return
	}
	m.metrics.RecordAudioSent(len(blob.Data))
}

// cameraLoop sends one still frame per interval.
func (m *Manager) cameraLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			jpeg, err := m.cam.Frame()
			if err != nil {
				log.Debug().Err(err).Msg("Camera frame unavailable, skipping")
				continue
			}
			if err := m.conn.SendImage(m.ctx, jpeg); err != nil {
				log.Warn().Err(err).Msg("Dropped video frame")
				continue
			}
			m.metrics.VideoFramesSent.Inc()
		}
	}
}

// receiveLoop is the single consumer of agent events. Arrival order is the
// transcript order.
func (m *Manager) receiveLoop() {
	defer m.wg.Done()
	for {
		ev, err := m.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || m.ctx.Err() != nil {
				return
			}
			m.metrics.AgentStreamErrors.Inc()
			log.Error().Err(err).Str("encounterId", m.opts.EncounterID).Msg("Agent stream failed")
			m.shutdown(err)
			return
		}
		m.handleEvent(ev)
	}
}

func (m *Manager) handleEvent(ev *agent.ServerEvent) {
	switch ev.Kind {
	case agent.EventInputTranscription:
		m.scratchMu.Lock()
		m.scratch = m.scratch.AppendUser(ev.Text)
		m.scratchMu.Unlock()
	case agent.EventOutputTranscription:
		m.scratchMu.Lock()
		m.scratch = m.scratch.AppendPatient(ev.Text)
		m.scratchMu.Unlock()
	case agent.EventTurnComplete:
		m.flushTurn()
	case agent.EventAudio:
		rate := audio.RateFromMIME(ev.Audio.MIMEType, audio.PlaybackSampleRate)
		buf, err := audio.DecodeInbound(ev.Audio, rate, 1)
		if err != nil {
			log.Warn().Err(err).Msg("Discarding undecodable audio chunk")
			return
		}
		m.metrics.AudioChunksReceived.Inc()
		m.sched.Schedule(buf)
	default:
		log.Debug().Str("kind", ev.Kind.String()).Msg("Ignoring agent event")
	}
}

// flushTurn moves accrued scratch text into the transcript and publishes the
// turn. No-op when the scratch is empty.
func (m *Manager) flushTurn() {
	m.scratchMu.Lock()
	entries, next := transcript.FlushTurn(m.scratch, m.nowMillis())
	m.scratch = next
	m.scratchMu.Unlock()
	if len(entries) == 0 {
		return
	}

	m.builder.Append(entries...)
	m.metrics.RecordTurn(len(entries))
	log.Debug().
		Str("encounterId", m.opts.EncounterID).
		Int("entries", len(entries)).
		Msg("Turn flushed")

	if m.opts.OnTurn != nil {
		m.opts.OnTurn(entries)
	}

	if m.opts.Publisher != nil {
		event := models.TurnEvent{
			EventType:   TurnEventType,
			EncounterID: m.opts.EncounterID,
			CaseID:      m.opts.Case.ID,
			Timestamp:   m.nowMillis(),
			Entries:     entries,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.opts.Publisher.PublishTurn(ctx, m.opts.EncounterID, event); err != nil {
			log.Warn().Err(err).Msg("Turn event publish failed")
		}
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state.State()
}

// Err returns the failure cause, or nil.
func (m *Manager) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

func (m *Manager) setErr(err error) {
	m.errMu.Lock()
	if m.lastErr == nil {
		m.lastErr = err
	}
	m.errMu.Unlock()
}

// Speaking reports whether patient audio is currently scheduled for playback.
func (m *Manager) Speaking() bool {
	return m.sched.Speaking()
}

// Remaining returns the countdown seconds left, or zero before streaming.
func (m *Manager) Remaining() int {
	if m.countdown == nil {
		return 0
	}
	return m.countdown.Remaining()
}

// Transcript returns a copy of the entries recorded so far.
func (m *Manager) Transcript() []models.TranscriptEntry {
	return m.builder.Snapshot()
}

// Case returns the patient case this session plays.
func (m *Manager) Case() models.PatientCase {
	return m.opts.Case
}
