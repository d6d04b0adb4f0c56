package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-patient-sim-service/internal/app"
	"ai-patient-sim-service/internal/audio"
	"ai-patient-sim-service/internal/eval"
	"ai-patient-sim-service/internal/flow"
	"ai-patient-sim-service/internal/media"
	"ai-patient-sim-service/internal/models"
	"ai-patient-sim-service/internal/observability/logging"
	"ai-patient-sim-service/internal/session"
)

// EvaluationEventType labels completed-evaluation Kafka events.
const EvaluationEventType = "encounter.evaluation.completed"

// evaluationBudget bounds the whole post-encounter evaluation, on top of
// the orchestrator's per-rubric timeouts.
const evaluationBudget = 5 * time.Minute

// clientMessage is what the browser sends up the encounter socket.
type clientMessage struct {
	Type   string `json:"type"` // "start", "audio", "end"
	CaseID int    `json:"caseId,omitempty"`
	Data   string `json:"data,omitempty"` // base64 PCM16LE at 16 kHz
}

// serverMessage is what the service sends down the encounter socket.
type serverMessage struct {
	Type        string                   `json:"type"` // "session", "turn", "audio", "report", "error"
	EncounterID string                   `json:"encounterId,omitempty"`
	State       string                   `json:"state,omitempty"`
	Speaking    bool                     `json:"speaking,omitempty"`
	Remaining   int                      `json:"remaining,omitempty"`
	Entries     []models.TranscriptEntry `json:"entries,omitempty"`
	Audio       *audio.Blob              `json:"audio,omitempty"`
	Report      *eval.Report             `json:"report,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// encounterConn owns one websocket connection and the single encounter
// session it carries.
type encounterConn struct {
	app    *app.Application
	ws     *websocket.Conn
	flow   *flow.Controller
	logger zerolog.Logger

	writeMu sync.Mutex

	encounterID string
	mic         *media.PushMic
	mgr         *session.Manager
}

// encounterHandler upgrades the request and runs the encounter protocol:
// one "start" message selecting a case, then audio frames until "end", the
// timer, or a disconnect closes the session and triggers evaluation.
func encounterHandler(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.WithComponent("httpapi").Warn().Err(err).Msg("Websocket upgrade failed")
			return
		}
		c := &encounterConn{
			app:    application,
			ws:     ws,
			flow:   flow.NewController(),
			logger: logging.WithComponent("httpapi"),
		}
		defer ws.Close()
		c.run(r.Context())
	}
}

func (c *encounterConn) run(ctx context.Context) {
	var msg clientMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Type != "start" {
		c.send(serverMessage{Type: "error", Error: "first message must be start"})
		return
	}
	pcase, ok := c.app.Catalog.ByID(msg.CaseID)
	if !ok {
		c.send(serverMessage{Type: "error", Error: "unknown case"})
		return
	}
	if err := c.flow.BeginEncounter(*pcase); err != nil {
		c.send(serverMessage{Type: "error", Error: "encounter already started"})
		return
	}

	c.encounterID = uuid.NewString()
	c.logger = logging.WithEncounter(c.encounterID, pcase.ID)
	c.mic = media.NewPushMic(c.app.Cfg.Session.MicBuffer)

	cfg := c.app.Cfg
	c.mgr = session.New(session.Options{
		EncounterID:   c.encounterID,
		Case:          *pcase,
		Dialer:        c.app.Dialer,
		Media:         &media.StaticProvider{Mic: c.mic},
		Sink:          &wsSink{conn: c},
		Publisher:     c.app.Publisher,
		TimerTicks:    int(cfg.Session.Duration / time.Second),
		FrameInterval: cfg.Session.FrameInterval,
		OnTurn:        c.onTurn,
		OnEnd:         c.onEnd,
	})

	if err := c.mgr.Start(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Session start failed")
		message := "could not start the encounter"
		if errors.Is(err, session.ErrConnectionFailed) {
			message = "could not reach the patient agent, please retry"
		} else if errors.Is(err, media.ErrPermissionDenied) {
			message = "microphone access is required"
		}
		c.send(serverMessage{Type: "error", Error: message})
		return
	}

	c.logger.Info().Msg("Encounter session streaming")
	c.send(serverMessage{
		Type:        "session",
		EncounterID: c.encounterID,
		State:       c.mgr.State().String(),
		Remaining:   c.mgr.Remaining(),
	})

	// Mid-stream failures surface through the session loops, not the read
	// loop. Close the socket so the client sees the error promptly.
	go func() {
		c.mgr.Wait()
		if c.mgr.State() == session.StateFailed {
			c.logger.Error().Err(c.mgr.Err()).Msg("Session failed mid-stream")
			c.send(serverMessage{Type: "error", Error: "the encounter was interrupted"})
			_ = c.ws.Close()
		}
	}()

	c.readLoop()
}

// readLoop consumes client frames until the encounter ends. A read error
// means the client went away; the session ends and is still evaluated.
func (c *encounterConn) readLoop() {
	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if c.mgr.State() == session.StateStreaming {
				c.logger.Info().Msg("Client disconnected, ending session")
				c.mgr.End()
			}
			c.mgr.Wait()
			return
		}
		switch msg.Type {
		case "audio":
			raw, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Dropping undecodable audio frame")
				continue
			}
			c.mic.Push(audio.UnpackPCM16(raw))
		case "end":
			c.mgr.End()
			c.mgr.Wait()
			return
		default:
			c.logger.Warn().Str("type", msg.Type).Msg("Ignoring unknown client message")
		}
	}
}

// onTurn pushes each flushed turn down the socket.
func (c *encounterConn) onTurn(entries []models.TranscriptEntry) {
	c.send(serverMessage{
		Type:      "turn",
		Entries:   entries,
		Speaking:  c.mgr.Speaking(),
		Remaining: c.mgr.Remaining(),
	})
}

// onEnd runs once per normal session end: it advances the flow, evaluates
// the transcript and delivers the report.
func (c *encounterConn) onEnd(entries []models.TranscriptEntry) {
	if err := c.flow.CompleteEncounter(entries); err != nil {
		c.logger.Error().Err(err).Msg("Encounter completion rejected")
		return
	}
	c.send(serverMessage{
		Type:        "session",
		EncounterID: c.encounterID,
		State:       c.mgr.State().String(),
	})

	pcase, transcript, err := c.flow.EvaluationData()
	if err != nil {
		c.logger.Error().Err(err).Msg("Evaluation data missing")
		c.send(serverMessage{Type: "error", Error: "evaluation could not run"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), evaluationBudget)
	defer cancel()

	report, err := c.app.Orchestrator.Evaluate(ctx, c.encounterID, pcase, transcript)
	if err != nil {
		c.logger.Error().Err(err).Msg("Evaluation failed")
		c.send(serverMessage{Type: "error", Error: "the evaluation service is unavailable, please try again later"})
		return
	}

	c.publishEvaluation(ctx, pcase, report)
	c.send(serverMessage{Type: "report", EncounterID: c.encounterID, Report: report})
}

func (c *encounterConn) publishEvaluation(ctx context.Context, pcase models.PatientCase, report *eval.Report) {
	rubrics := make([]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rubrics = append(rubrics, string(o.Kind))
	}
	failed := make([]string, 0, len(report.Failed))
	for _, k := range report.Failed {
		failed = append(failed, string(k))
	}
	event := models.EvaluationEvent{
		EventType:     EvaluationEventType,
		EncounterID:   c.encounterID,
		CaseID:        pcase.ID,
		Timestamp:     time.Now().UnixMilli(),
		Rubrics:       rubrics,
		FailedRubrics: failed,
	}
	if err := c.app.Publisher.PublishEvaluation(ctx, c.encounterID, event); err != nil {
		c.logger.Warn().Err(err).Msg("Evaluation event publish failed")
	}
}

// send serializes writes; gorilla/websocket allows one concurrent writer.
func (c *encounterConn) send(msg serverMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Websocket write failed")
	}
}

// wsSink delivers scheduled patient audio to the client as transport blobs.
// Scheduling happens client-side; the start time is advisory.
type wsSink struct {
	conn *encounterConn
}

func (s *wsSink) Play(buf *audio.PCMBuffer, _ time.Time) error {
	if buf.FrameCount() == 0 {
		return nil
	}
	blob := audio.BlobFromPCM(audio.PackPCM16(buf.Channels[0]), buf.SampleRate)
	s.conn.send(serverMessage{Type: "audio", Audio: &blob, Speaking: true})
	return nil
}
