package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-patient-sim-service/internal/app"
	"ai-patient-sim-service/internal/audio"
	"ai-patient-sim-service/internal/media"
	"ai-patient-sim-service/internal/models"
)

// wireMessage mirrors serverMessage from the client's side of the socket,
// with the rubric results left raw so decoding does not need the result types.
type wireMessage struct {
	Type        string                   `json:"type"`
	EncounterID string                   `json:"encounterId"`
	State       string                   `json:"state"`
	Speaking    bool                     `json:"speaking"`
	Remaining   int                      `json:"remaining"`
	Entries     []models.TranscriptEntry `json:"entries"`
	Audio       *audio.Blob              `json:"audio"`
	Report      *wireReport              `json:"report"`
	Error       string                   `json:"error"`
}

type wireReport struct {
	EncounterID string        `json:"encounterId"`
	CaseID      int           `json:"caseId"`
	Outcomes    []wireOutcome `json:"outcomes"`
	Failed      []string      `json:"failedRubrics"`
}

type wireOutcome struct {
	Kind           string          `json:"kind"`
	Title          string          `json:"title"`
	Result         json.RawMessage `json:"result"`
	AggregateScore *int            `json:"aggregateScore"`
}

func dialEncounter(t *testing.T, application *app.Application) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(application))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/encounter"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial encounter socket: %v", err)
	}
	return ws, func() {
		ws.Close()
		srv.Close()
	}
}

// silentFrame is one capture frame of silence, base64 PCM16LE.
func silentFrame() string {
	return base64.StdEncoding.EncodeToString(make([]byte, media.FrameSamples*2))
}

// readUntil reads server messages, skipping types other than want, until it
// finds one or times out.
func readUntil(t *testing.T, ws *websocket.Conn, want string) wireMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = ws.SetReadDeadline(deadline)
		var msg wireMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q message: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
		if msg.Type == "error" {
			t.Fatalf("waiting for %q message, got error: %s", want, msg.Error)
		}
	}
}

func readErr(t *testing.T, ws *websocket.Conn) wireMessage {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wireMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read error message: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("message type = %q, want error", msg.Type)
	}
	return msg
}

func TestEncounter_FullFlow(t *testing.T) {
	application := newTestApp(t)
	ws, cleanup := dialEncounter(t, application)
	defer cleanup()

	if err := ws.WriteJSON(clientMessage{Type: "start", CaseID: 1}); err != nil {
		t.Fatalf("send start: %v", err)
	}

	started := readUntil(t, ws, "session")
	if started.State != "STREAMING" {
		t.Fatalf("session state = %q, want STREAMING", started.State)
	}
	if started.EncounterID == "" {
		t.Fatal("session message has no encounter ID")
	}
	if started.Remaining <= 0 {
		t.Errorf("remaining = %d, want > 0", started.Remaining)
	}

	// The scripted first exchange completes after nine upstream frames:
	// five transcription fragments, three audio chunks, one turn-complete.
	for i := 0; i < 9; i++ {
		if err := ws.WriteJSON(clientMessage{Type: "audio", Data: silentFrame()}); err != nil {
			t.Fatalf("send audio frame %d: %v", i, err)
		}
	}

	turn := readUntil(t, ws, "turn")
	if len(turn.Entries) != 2 {
		t.Fatalf("turn entries = %d, want 2", len(turn.Entries))
	}
	if got := turn.Entries[0].Text; got != "Hello, what brings you in today?" {
		t.Errorf("student line = %q", got)
	}
	if got := turn.Entries[1].Text; got != "I've got this terrible headache." {
		t.Errorf("patient line = %q", got)
	}

	if err := ws.WriteJSON(clientMessage{Type: "end"}); err != nil {
		t.Fatalf("send end: %v", err)
	}

	closed := readUntil(t, ws, "session")
	if closed.State != "CLOSED" {
		t.Fatalf("session state after end = %q, want CLOSED", closed.State)
	}

	report := readUntil(t, ws, "report")
	if report.Report == nil {
		t.Fatal("report message carries no report")
	}
	if got := len(report.Report.Outcomes); got != 4 {
		t.Fatalf("report outcomes = %d, want 4", got)
	}
	if len(report.Report.Failed) != 0 {
		t.Errorf("failed rubrics = %v, want none", report.Report.Failed)
	}
	if report.Report.EncounterID != started.EncounterID {
		t.Errorf("report encounter ID = %q, want %q", report.Report.EncounterID, started.EncounterID)
	}
}

func TestEncounter_PatientAudioDelivered(t *testing.T) {
	application := newTestApp(t)
	ws, cleanup := dialEncounter(t, application)
	defer cleanup()

	if err := ws.WriteJSON(clientMessage{Type: "start", CaseID: 1}); err != nil {
		t.Fatalf("send start: %v", err)
	}
	readUntil(t, ws, "session")

	for i := 0; i < 9; i++ {
		if err := ws.WriteJSON(clientMessage{Type: "audio", Data: silentFrame()}); err != nil {
			t.Fatalf("send audio frame %d: %v", i, err)
		}
	}

	chunk := readUntil(t, ws, "audio")
	if chunk.Audio == nil || chunk.Audio.Data == "" {
		t.Fatal("audio message carries no payload")
	}
	if !strings.Contains(chunk.Audio.MIMEType, "rate=24000") {
		t.Errorf("audio mime type = %q, want a 24 kHz rate", chunk.Audio.MIMEType)
	}
	if !chunk.Speaking {
		t.Error("audio message should mark the patient as speaking")
	}
}

func TestEncounter_UnknownCase(t *testing.T) {
	application := newTestApp(t)
	ws, cleanup := dialEncounter(t, application)
	defer cleanup()

	if err := ws.WriteJSON(clientMessage{Type: "start", CaseID: 999}); err != nil {
		t.Fatalf("send start: %v", err)
	}
	msg := readErr(t, ws)
	if msg.Error != "unknown case" {
		t.Errorf("error = %q, want unknown case", msg.Error)
	}
}

func TestEncounter_StartRequired(t *testing.T) {
	application := newTestApp(t)
	ws, cleanup := dialEncounter(t, application)
	defer cleanup()

	if err := ws.WriteJSON(clientMessage{Type: "audio", Data: silentFrame()}); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	msg := readErr(t, ws)
	if !strings.Contains(msg.Error, "start") {
		t.Errorf("error = %q, want a start-required message", msg.Error)
	}
}
