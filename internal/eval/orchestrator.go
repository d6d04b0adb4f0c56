package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-patient-sim-service/internal/models"
	"ai-patient-sim-service/internal/observability/metrics"
	"ai-patient-sim-service/internal/textgen"
)

// ErrAllRubricsFailed blocks the report when not a single rubric settled
// successfully. Partial failure never produces this error.
var ErrAllRubricsFailed = errors.New("all rubric evaluations failed")

// DefaultRubricTimeout bounds each rubric request so one stuck call cannot
// leave the report pending indefinitely.
const DefaultRubricTimeout = 90 * time.Second

// Options configures an Orchestrator.
type Options struct {
	// Rules overrides the specialty selection rules. Nil means DefaultRules.
	Rules []Rule
	// RubricTimeout bounds each rubric request. Zero means the default.
	RubricTimeout time.Duration

	Metrics *metrics.Metrics
}

// Outcome is one rubric's settled result within a report.
type Outcome struct {
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Result    Result `json:"result,omitempty"`
	Aggregate *int   `json:"aggregateScore,omitempty"`

	// Err is the failure cause, for logging only. A failed rubric renders
	// as "unavailable"; the cause never reaches the user.
	Err error `json:"-"`
}

// Report is the settled evaluation of one encounter. Outcomes keep the
// request order; Failed names the rubrics that did not settle successfully.
type Report struct {
	EncounterID string    `json:"encounterId"`
	CaseID      int       `json:"caseId"`
	Outcomes    []Outcome `json:"outcomes"`
	Failed      []Kind    `json:"failedRubrics,omitempty"`
}

// Orchestrator fans rubric requests out against a text generator.
type Orchestrator struct {
	gen     textgen.Generator
	rules   []Rule
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewOrchestrator builds an orchestrator over the given generator.
func NewOrchestrator(gen textgen.Generator, opts Options) *Orchestrator {
	timeout := opts.RubricTimeout
	if timeout <= 0 {
		timeout = DefaultRubricTimeout
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Orchestrator{
		gen:     gen,
		rules:   opts.Rules,
		timeout: timeout,
		metrics: m,
	}
}

// Evaluate runs every selected rubric concurrently and waits for all of them
// to settle. One rubric's failure neither cancels nor blocks its siblings;
// only a full sweep of failures produces an error.
func (o *Orchestrator) Evaluate(ctx context.Context, encounterID string, pcase models.PatientCase, entries []models.TranscriptEntry) (*Report, error) {
	start := time.Now()
	kinds := SelectRubrics(pcase, o.rules)

	log.Info().
		Str("encounterId", encounterID).
		Int("caseId", pcase.ID).
		Int("rubrics", len(kinds)).
		Msg("Evaluation started")

	outcomes := make([]Outcome, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		rubric, ok := Lookup(kind)
		if !ok {
			outcomes[i] = Outcome{Kind: kind, Err: fmt.Errorf("unknown rubric %q", kind)}
			continue
		}
		wg.Add(1)
		go func(i int, r *Rubric) {
			defer wg.Done()
			outcomes[i] = o.runRubric(ctx, r, pcase, entries)
		}(i, rubric)
	}
	wg.Wait()

	report := &Report{
		EncounterID: encounterID,
		CaseID:      pcase.ID,
		Outcomes:    outcomes,
	}
	for _, out := range outcomes {
		if out.Err != nil {
			report.Failed = append(report.Failed, out.Kind)
		}
	}

	o.metrics.EvaluationsTotal.Inc()
	o.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	if len(report.Failed) == len(outcomes) {
		names := make([]string, len(report.Failed))
		for i, k := range report.Failed {
			names[i] = string(k)
		}
		return nil, fmt.Errorf("%w: %s", ErrAllRubricsFailed, strings.Join(names, ", "))
	}

	log.Info().
		Str("encounterId", encounterID).
		Int("succeeded", len(outcomes)-len(report.Failed)).
		Int("failed", len(report.Failed)).
		Dur("elapsed", time.Since(start)).
		Msg("Evaluation settled")
	return report, nil
}

// runRubric issues one bounded rubric request and parses its response.
func (o *Orchestrator) runRubric(ctx context.Context, r *Rubric, pcase models.PatientCase, entries []models.TranscriptEntry) Outcome {
	start := time.Now()
	out := Outcome{Kind: r.Kind, Title: r.Title}

	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.gen.Generate(rctx, r.BuildPrompt(pcase, entries), r.Schema())
	if err != nil {
		out.Err = err
		o.metrics.RecordRubric(string(r.Kind), err, time.Since(start).Seconds())
		log.Warn().
			Err(err).
			Str("rubric", string(r.Kind)).
			Str("cause", failureCause(err)).
			Msg("Rubric evaluation failed")
		return out
	}

	result, err := r.Parse(raw)
	if err != nil {
		out.Err = err
		o.metrics.RecordRubric(string(r.Kind), err, time.Since(start).Seconds())
		log.Warn().
			Err(err).
			Str("rubric", string(r.Kind)).
			Str("cause", "parse").
			Msg("Rubric evaluation failed")
		return out
	}

	out.Result = result
	out.Aggregate = result.AggregateScore()
	o.metrics.RecordRubric(string(r.Kind), nil, time.Since(start).Seconds())
	return out
}

// failureCause classifies a request failure for logging. All causes collapse
// to the same user-visible "rubric unavailable" state.
func failureCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "request"
	}
}
