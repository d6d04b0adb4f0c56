// Package transcript assembles the encounter transcript from streamed
// transcription fragments.
//
// Fragments accumulate in a per-turn scratch state and are flushed into the
// transcript when the agent signals turn completion. Entries are append-only
// and their timestamps strictly increase in stored order.
package transcript

import (
	"strings"
	"sync"

	"ai-patient-sim-service/internal/models"
)

// TurnState holds in-progress transcription text for the current turn.
// It is cleared at every turn boundary.
type TurnState struct {
	PendingUser    string
	PendingPatient string
}

// AppendUser accumulates partial input (student) transcription.
func (s TurnState) AppendUser(text string) TurnState {
	s.PendingUser += text
	return s
}

// AppendPatient accumulates partial output (patient) transcription.
func (s TurnState) AppendPatient(text string) TurnState {
	s.PendingPatient += text
	return s
}

// Empty reports whether the turn has accumulated no text.
func (s TurnState) Empty() bool {
	return strings.TrimSpace(s.PendingUser) == "" && strings.TrimSpace(s.PendingPatient) == ""
}

// FlushTurn converts the scratch state into transcript entries and returns
// the cleared state. The user entry is stamped at now; the patient entry at
// now+1 so that stored order survives both landing in the same millisecond.
// Blank accumulators produce no entry.
func FlushTurn(s TurnState, nowMillis int64) ([]models.TranscriptEntry, TurnState) {
	var entries []models.TranscriptEntry
	if text := strings.TrimSpace(s.PendingUser); text != "" {
		entries = append(entries, models.TranscriptEntry{
			Speaker:   models.SpeakerUser,
			Text:      text,
			Timestamp: nowMillis,
		})
	}
	if text := strings.TrimSpace(s.PendingPatient); text != "" {
		entries = append(entries, models.TranscriptEntry{
			Speaker:   models.SpeakerPatient,
			Text:      text,
			Timestamp: nowMillis + 1,
		})
	}
	return entries, TurnState{}
}

// Builder owns the accumulating transcript for one session.
// Append-only; safe for concurrent use.
type Builder struct {
	mu      sync.Mutex
	entries []models.TranscriptEntry
}

// NewBuilder returns an empty transcript builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Append adds entries to the transcript. Existing entries are never mutated.
func (b *Builder) Append(entries ...models.TranscriptEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entries...)
}

// Len returns the current entry count.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Snapshot returns a copy of the transcript. The copy is what gets handed
// off to the evaluation stage at session end.
func (b *Builder) Snapshot() []models.TranscriptEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.TranscriptEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Render formats the transcript as a single text block for evaluation
// prompts, one "<Role>: <text>" line per entry in stored order.
func Render(entries []models.TranscriptEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		role := "Patient"
		if e.Speaker == models.SpeakerUser {
			role = "Student"
		}
		lines = append(lines, role+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}
