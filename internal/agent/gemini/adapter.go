// Package gemini implements the agent adapter on the Gemini Live API.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"ai-patient-sim-service/internal/agent"
	"ai-patient-sim-service/internal/audio"
)

// DefaultModel is the native-audio live model the encounter runs against.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// Dialer opens Gemini Live sessions.
type Dialer struct {
	client *genai.Client
	model  string
}

// NewDialer creates a dialer backed by the Gemini API. The API key follows
// the SDK's resolution order (GEMINI_API_KEY / GOOGLE_API_KEY) when apiKey
// is empty.
func NewDialer(ctx context.Context, apiKey, model string) (*Dialer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Dialer{client: client, model: model}, nil
}

// Connect opens a live session configured for an encounter: persona as
// system instruction, case voice, audio-only responses, and transcription
// of both directions.
func (d *Dialer) Connect(ctx context.Context, cfg agent.SessionConfig) (agent.Conn, error) {
	session, err := d.client.Live.Connect(ctx, d.model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.Persona}},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: live connect: %w", err)
	}

	log.Info().
		Str("component", "agent.gemini").
		Str("encounterId", cfg.EncounterID).
		Str("model", d.model).
		Str("voice", cfg.Voice).
		Msg("Live session connected")

	return &conn{session: session, encounterID: cfg.EncounterID}, nil
}

// conn adapts a genai live session to agent.Conn. One server message can
// carry several logical events; expanded events are buffered and handed out
// one at a time to preserve arrival order.
type conn struct {
	session     *genai.Session
	encounterID string

	mu      sync.Mutex
	pending []*agent.ServerEvent
	closed  bool
}

func (c *conn) SendAudio(_ context.Context, blob audio.Blob) error {
	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		return fmt.Errorf("gemini: decode outbound blob: %w", err)
	}
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: raw, MIMEType: blob.MIMEType},
	})
}

func (c *conn) SendImage(_ context.Context, jpeg []byte) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: jpeg, MIMEType: "image/jpeg"},
	})
}

func (c *conn) Receive() (*agent.ServerEvent, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		return ev, nil
	}
	c.mu.Unlock()

	for {
		msg, err := c.session.Receive()
		if err != nil {
			return nil, err
		}
		events := expand(msg)
		if len(events) == 0 {
			continue
		}
		c.mu.Lock()
		c.pending = append(c.pending, events[1:]...)
		c.mu.Unlock()
		return events[0], nil
	}
}

// expand flattens a live server message into ordered events: transcription
// fragments, then the turn boundary, then response audio.
func expand(msg *genai.LiveServerMessage) []*agent.ServerEvent {
	sc := msg.ServerContent
	if sc == nil {
		return nil
	}

	var events []*agent.ServerEvent
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, &agent.ServerEvent{
			Kind: agent.EventInputTranscription,
			Text: sc.InputTranscription.Text,
		})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, &agent.ServerEvent{
			Kind: agent.EventOutputTranscription,
			Text: sc.OutputTranscription.Text,
		})
	}
	if sc.TurnComplete {
		events = append(events, &agent.ServerEvent{Kind: agent.EventTurnComplete})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			rate := audio.RateFromMIME(part.InlineData.MIMEType, audio.PlaybackSampleRate)
			events = append(events, &agent.ServerEvent{
				Kind:  agent.EventAudio,
				Audio: audio.BlobFromPCM(part.InlineData.Data, rate),
			})
		}
	}
	return events
}

// Close ends the live session. Idempotent; repeat closes are no-ops.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("gemini: close session: %w", err)
	}
	return nil
}
