package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-patient-sim-service/internal/agent"
	"ai-patient-sim-service/internal/agent/mock"
	"ai-patient-sim-service/internal/audio"
	"ai-patient-sim-service/internal/media"
	"ai-patient-sim-service/internal/models"
)

var testCase = models.PatientCase{
	ID:     1,
	Name:   "Rajesh Sharma",
	Gender: "Man",
	Script: "You are Rajesh Sharma, presenting with itchy hives.",
}

func testNow() func() int64 {
	var n int64
	return func() int64 { return atomic.AddInt64(&n, 1000) }
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

type fakeCamera struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeCamera) Frame() ([]byte, error) { return []byte{0xff, 0xd8, 0xff}, nil }

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeCamera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestManager(dialer agent.Dialer, mic *media.PushMic, cam media.Camera, onEnd func([]models.TranscriptEntry)) *Manager {
	return New(Options{
		EncounterID: "enc-test",
		Case:        testCase,
		Dialer:      dialer,
		Media:       &media.StaticProvider{Mic: mic, Cam: cam},
		NowMillis:   testNow(),
		TimerTicks:  3600,
		OnEnd:       onEnd,
	})
}

func TestManager_MicDenied(t *testing.T) {
	m := New(Options{
		EncounterID: "enc-test",
		Case:        testCase,
		Dialer:      &mock.Dialer{},
		Media:       &media.StaticProvider{MicErr: media.ErrPermissionDenied},
	})

	err := m.Start(context.Background())
	if !errors.Is(err, media.ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if m.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", m.State())
	}
	if m.Err() == nil {
		t.Error("expected failure cause recorded")
	}
}

func TestManager_ConnectFailure(t *testing.T) {
	mic := media.NewPushMic(4)
	dialer := &mock.Dialer{ConnectErr: errors.New("dial tcp: refused")}
	m := newTestManager(dialer, mic, nil, nil)

	err := m.Start(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
	if m.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", m.State())
	}
	// Mic must have been released on the failure path.
	if mic.Push(make([]float32, 8)) {
		t.Error("expected mic closed after connect failure")
	}
}

func TestManager_StartTwice(t *testing.T) {
	mic := media.NewPushMic(4)
	dialer := &mock.Dialer{}
	m := newTestManager(dialer, mic, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.End()

	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestManager_TranscriptFlow(t *testing.T) {
	mic := media.NewPushMic(4)
	dialer := &mock.Dialer{}
	m := newTestManager(dialer, mic, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != StateStreaming {
		t.Fatalf("expected STREAMING, got %s", m.State())
	}

	conn := dialer.Conns()[0]
	conn.ReleaseAll()

	// DefaultScript holds three exchanges, each flushing one user and one
	// patient entry.
	waitUntil(t, func() bool { return len(m.Transcript()) == 6 }, "transcript never reached 6 entries")

	entries := m.End()
	m.Wait()

	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
	if entries[0].Speaker != models.SpeakerUser || entries[0].Text != "Hello, what brings you in today?" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Speaker != models.SpeakerPatient || entries[1].Text != "I've got this terrible headache." {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp <= entries[i-1].Timestamp {
			t.Errorf("timestamps not strictly increasing at %d: %d then %d",
				i, entries[i-1].Timestamp, entries[i].Timestamp)
		}
	}
	if m.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", m.State())
	}
}

func TestManager_CaptureForwardsFrames(t *testing.T) {
	mic := media.NewPushMic(8)
	dialer := &mock.Dialer{}
	m := newTestManager(dialer, mic, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.End()

	conn := dialer.Conns()[0]

	// Two half-frames coalesce into one outbound frame.
	mic.Push(make([]float32, media.FrameSamples/2))
	mic.Push(make([]float32, media.FrameSamples/2))
	waitUntil(t, func() bool { return conn.AudioFrames() == 1 }, "coalesced frame never sent")

	// One oversized push yields two frames.
	mic.Push(make([]float32, 2*media.FrameSamples))
	waitUntil(t, func() bool { return conn.AudioFrames() == 3 }, "oversized push not re-chunked")
}

func TestManager_ResidualScratchFlushedAtEnd(t *testing.T) {
	mic := media.NewPushMic(8)
	dialer := &mock.Dialer{Script: []mock.Exchange{
		{InputFragments: []string{"Doctor ", "here"}},
	}}
	m := newTestManager(dialer, mic, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialer.Conns()[0]

	// Release only the two transcription fragments; the turn-complete
	// signal stays withheld.
	mic.Push(make([]float32, media.FrameSamples))
	mic.Push(make([]float32, media.FrameSamples))
	waitUntil(t, func() bool { return conn.AudioFrames() == 2 }, "frames never sent")
	time.Sleep(50 * time.Millisecond) // let the receive loop drain

	entries := m.End()
	m.Wait()

	if len(entries) != 1 {
		t.Fatalf("expected residual entry, got %d entries", len(entries))
	}
	if entries[0].Speaker != models.SpeakerUser || entries[0].Text != "Doctor here" {
		t.Errorf("unexpected residual entry: %+v", entries[0])
	}
}

func TestManager_EndIdempotent(t *testing.T) {
	mic := media.NewPushMic(4)
	dialer := &mock.Dialer{}
	m := newTestManager(dialer, mic, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialer.Conns()[0]
	conn.ReleaseAll()
	waitUntil(t, func() bool { return len(m.Transcript()) == 6 }, "transcript incomplete")

	first := m.End()
	second := m.End()
	m.Wait()

	if len(first) != len(second) {
		t.Errorf("End not idempotent: %d then %d entries", len(first), len(second))
	}
	if m.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", m.State())
	}
	if conn.CloseCount() != 1 {
		t.Errorf("expected exactly one connection close, got %d", conn.CloseCount())
	}
}

func TestManager_TimerExpiryEndsSession(t *testing.T) {
	mic := media.NewPushMic(4)
	dialer := &mock.Dialer{}
	ended := make(chan []models.TranscriptEntry, 1)
	m := New(Options{
		EncounterID:   "enc-test",
		Case:          testCase,
		Dialer:        dialer,
		Media:         &media.StaticProvider{Mic: mic},
		NowMillis:     testNow(),
		TimerTicks:    2,
		TimerInterval: 2 * time.Millisecond,
		OnEnd:         func(entries []models.TranscriptEntry) { ended <- entries },
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timer expiry never ended the session")
	}
	if m.State() != StateClosed {
		t.Errorf("expected CLOSED after timeout, got %s", m.State())
	}
}

func TestManager_CameraDutyCycle(t *testing.T) {
	mic := media.NewPushMic(4)
	cam := &fakeCamera{}
	dialer := &mock.Dialer{}
	m := New(Options{
		EncounterID:   "enc-test",
		Case:          testCase,
		Dialer:        dialer,
		Media:         &media.StaticProvider{Mic: mic, Cam: cam},
		NowMillis:     testNow(),
		TimerTicks:    3600,
		FrameInterval: 2 * time.Millisecond,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialer.Conns()[0]
	waitUntil(t, func() bool { return conn.ImageFrames() >= 2 }, "camera frames never sent")

	m.End()
	m.Wait()
	if !cam.Closed() {
		t.Error("expected camera released at teardown")
	}
}

type failingConn struct {
	err error
}

func (c *failingConn) SendAudio(context.Context, audio.Blob) error { return nil }
func (c *failingConn) SendImage(context.Context, []byte) error     { return nil }
func (c *failingConn) Receive() (*agent.ServerEvent, error)        { return nil, c.err }
func (c *failingConn) Close() error                                { return nil }

type failingDialer struct {
	conn agent.Conn
}

func (d *failingDialer) Connect(context.Context, agent.SessionConfig) (agent.Conn, error) {
	return d.conn, nil
}

func TestManager_MidStreamFailure(t *testing.T) {
	mic := media.NewPushMic(4)
	streamErr := errors.New("connection reset")
	ended := make(chan []models.TranscriptEntry, 1)
	m := New(Options{
		EncounterID: "enc-test",
		Case:        testCase,
		Dialer:      &failingDialer{conn: &failingConn{err: streamErr}},
		Media:       &media.StaticProvider{Mic: mic},
		NowMillis:   testNow(),
		TimerTicks:  3600,
		OnEnd:       func(entries []models.TranscriptEntry) { ended <- entries },
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Wait()

	if m.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", m.State())
	}
	if !errors.Is(m.Err(), streamErr) {
		t.Errorf("expected stream error recorded, got %v", m.Err())
	}
	select {
	case <-ended:
		t.Error("OnEnd must not fire on failure")
	default:
	}
}

func TestManager_SpeakingFollowsPlayback(t *testing.T) {
	mic := media.NewPushMic(8)
	dialer := &mock.Dialer{Script: []mock.Exchange{{AudioChunks: 2}}}
	clock := newFakeClock()
	sink := &fakeSink{}
	m := New(Options{
		EncounterID: "enc-test",
		Case:        testCase,
		Dialer:      dialer,
		Media:       &media.StaticProvider{Mic: mic},
		Sink:        sink,
		Clock:       clock,
		NowMillis:   testNow(),
		TimerTicks:  3600,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.End()

	if m.Speaking() {
		t.Error("no audio scheduled yet")
	}

	conn := dialer.Conns()[0]
	conn.ReleaseAll()
	waitUntil(t, func() bool { return len(sink.Starts()) == 2 }, "audio chunks never reached the sink")

	if !m.Speaking() {
		t.Error("expected speaking while chunks are queued")
	}
	clock.Advance(time.Second)
	if m.Speaking() {
		t.Error("expected silence after playback drains")
	}
}
