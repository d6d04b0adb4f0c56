// Package models defines the domain types shared across the service.
package models

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerUser is the student conducting the encounter.
	SpeakerUser Speaker = "user"
	// SpeakerPatient is the AI-simulated patient.
	SpeakerPatient Speaker = "patient"
)

// PatientCase is a static case descriptor. Instances are immutable and owned
// by the catalog; they are loaded once at startup.
type PatientCase struct {
	ID             int      `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Age            int      `yaml:"age" json:"age"`
	Ethnicity      string   `yaml:"ethnicity" json:"ethnicity"`
	Gender         string   `yaml:"gender" json:"gender"`
	AvatarURL      string   `yaml:"avatarUrl" json:"avatarUrl"`
	DoorNote       string   `yaml:"doorNote" json:"doorNote"`
	ChiefComplaint string   `yaml:"chiefComplaint" json:"chiefComplaint"`
	Tags           []string `yaml:"tags" json:"tags"`
	Script         string   `yaml:"script" json:"-"`
}

// HasTag reports whether the case carries the given tag.
func (c *PatientCase) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TranscriptEntry is one utterance in the encounter transcript.
// Entries are append-only; Timestamp is epoch milliseconds and strictly
// increases in stored order (patient entries in the same turn are biased
// +1ms past the user entry).
type TranscriptEntry struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}
