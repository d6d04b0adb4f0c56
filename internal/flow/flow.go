// Package flow holds the top-level encounter lifecycle state: which stage a
// client is in and the data carried between stages.
package flow

import (
	"errors"
	"fmt"
	"sync"

	"ai-patient-sim-service/internal/models"
)

// Screen is one stage of the encounter lifecycle.
type Screen string

const (
	ScreenSelection  Screen = "SELECTION"
	ScreenEncounter  Screen = "ENCOUNTER"
	ScreenEvaluation Screen = "EVALUATION"
)

// ErrMissingData signals that a stage's required inputs are gone; callers
// fall back to selection.
var ErrMissingData = errors.New("flow: stage data missing")

// Controller validates stage transitions and carries the case and transcript
// between them. Safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	screen  Screen
	pcase   *models.PatientCase
	entries []models.TranscriptEntry
}

// NewController starts at the selection stage.
func NewController() *Controller {
	return &Controller{screen: ScreenSelection}
}

// Screen returns the current stage.
func (c *Controller) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

// BeginEncounter moves SELECTION → ENCOUNTER with the chosen case.
func (c *Controller) BeginEncounter(pcase models.PatientCase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != ScreenSelection {
		return fmt.Errorf("flow: cannot begin encounter from %s", c.screen)
	}
	c.pcase = &pcase
	c.entries = nil
	c.screen = ScreenEncounter
	return nil
}

// CompleteEncounter moves ENCOUNTER → EVALUATION with the final transcript.
func (c *Controller) CompleteEncounter(entries []models.TranscriptEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != ScreenEncounter {
		return fmt.Errorf("flow: cannot complete encounter from %s", c.screen)
	}
	c.entries = append([]models.TranscriptEntry(nil), entries...)
	c.screen = ScreenEvaluation
	return nil
}

// EvaluationData returns the case and transcript the evaluation stage needs.
// ErrMissingData means the controller lost its inputs; the caller resets to
// selection.
func (c *Controller) EvaluationData() (models.PatientCase, []models.TranscriptEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != ScreenEvaluation || c.pcase == nil {
		return models.PatientCase{}, nil, ErrMissingData
	}
	return *c.pcase, append([]models.TranscriptEntry(nil), c.entries...), nil
}

// SelectedCase returns the case in play, if any.
func (c *Controller) SelectedCase() (models.PatientCase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pcase == nil {
		return models.PatientCase{}, false
	}
	return *c.pcase, true
}

// Reset returns to selection from any stage and clears carried data.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.screen = ScreenSelection
	c.pcase = nil
	c.entries = nil
	c.mu.Unlock()
}
