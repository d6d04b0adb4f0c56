package models

// TurnEvent is published after each completed conversational turn.
type TurnEvent struct {
	EventType   string            `json:"eventType"`
	EncounterID string            `json:"encounterId"`
	CaseID      int               `json:"caseId"`
	Timestamp   int64             `json:"timestamp"`
	Entries     []TranscriptEntry `json:"entries"`
}

// EvaluationEvent is published once an encounter evaluation settles.
type EvaluationEvent struct {
	EventType     string   `json:"eventType"`
	EncounterID   string   `json:"encounterId"`
	CaseID        int      `json:"caseId"`
	Timestamp     int64    `json:"timestamp"`
	Rubrics       []string `json:"rubrics"`
	FailedRubrics []string `json:"failedRubrics,omitempty"`
}
