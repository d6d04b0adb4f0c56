// Package agent defines the interface to the remote conversational-agent
// service that plays the simulated patient.
package agent

import (
	"context"

	"ai-patient-sim-service/internal/audio"
)

// SessionConfig configures one live conversation with the agent.
type SessionConfig struct {
	// EncounterID tags logs and events for this conversation.
	EncounterID string
	// Persona is the case script used as the agent's system instruction.
	Persona string
	// Voice selects the agent's speaking voice.
	Voice string
}

// EventKind discriminates inbound agent events.
type EventKind int

const (
	// EventInputTranscription carries a partial transcription of the
	// student's speech.
	EventInputTranscription EventKind = iota
	// EventOutputTranscription carries a partial transcription of the
	// patient's speech.
	EventOutputTranscription
	// EventTurnComplete marks the boundary of one back-and-forth exchange.
	EventTurnComplete
	// EventAudio carries a chunk of the patient's spoken response.
	EventAudio
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventInputTranscription:
		return "input_transcription"
	case EventOutputTranscription:
		return "output_transcription"
	case EventTurnComplete:
		return "turn_complete"
	case EventAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// ServerEvent is one inbound message from the agent. Events must be consumed
// in arrival order; transcript ordering depends on it.
type ServerEvent struct {
	Kind  EventKind
	Text  string     // transcription fragment, for transcription kinds
	Audio audio.Blob // response audio, for EventAudio
}

// Conn is one live, exclusively-owned connection to the agent.
type Conn interface {
	// SendAudio pushes one encoded microphone frame. Fire-and-forget; the
	// agent does not acknowledge frames.
	SendAudio(ctx context.Context, blob audio.Blob) error

	// SendImage pushes one compressed still frame from the camera.
	SendImage(ctx context.Context, jpeg []byte) error

	// Receive blocks for the next server event. It returns io.EOF after a
	// graceful close and a non-nil error on connection failure.
	Receive() (*ServerEvent, error)

	// Close ends the conversation and releases the connection. Safe to call
	// more than once.
	Close() error
}

// Dialer opens agent connections (Gemini Live, mock, ...).
type Dialer interface {
	Connect(ctx context.Context, cfg SessionConfig) (Conn, error)
}

// VoiceForGender maps a case's gender to the agent voice used for it.
func VoiceForGender(gender string) string {
	if gender == "Man" {
		return "Puck"
	}
	return "Kore"
}
