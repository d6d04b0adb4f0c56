// Package eval orchestrates the multi-rubric evaluation of a completed
// encounter: rubric selection, prompt construction, concurrent fail-soft
// scoring requests, and aggregation.
package eval

import (
	"embed"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"ai-patient-sim-service/internal/models"
	"ai-patient-sim-service/internal/transcript"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// Kind names a scoring rubric.
type Kind string

const (
	KindSegue            Kind = "segue"
	KindCalgaryCambridge Kind = "calgary_cambridge"
	KindEPA              Kind = "epa"
	KindPsychiatric      Kind = "psychiatric"
	KindSPIKES           Kind = "spikes"
	KindGeriatric        Kind = "geriatric"
	KindNonVerbal        Kind = "nonverbal"
	KindEmergency        Kind = "emergency"
)

// Rubric binds a prompt template to its response schema and result type.
type Rubric struct {
	Kind       Kind
	Title      string
	template   string
	resultType reflect.Type
	schema     *genai.Schema
}

// registry holds every known rubric, keyed by kind.
var registry = map[Kind]*Rubric{}

func register(kind Kind, title, promptFile string, zero Result) {
	raw, err := promptFS.ReadFile("prompts/" + promptFile)
	if err != nil {
		panic(fmt.Sprintf("eval: missing prompt template %s: %v", promptFile, err))
	}
	t := reflect.TypeOf(zero).Elem()
	registry[kind] = &Rubric{
		Kind:       kind,
		Title:      title,
		template:   string(raw),
		resultType: t,
		schema:     schemaFor(t),
	}
}

func init() {
	register(KindSegue, "SEGUE Framework", "segue.txt", &SegueResult{})
	register(KindCalgaryCambridge, "Calgary-Cambridge Guide", "calgary_cambridge.txt", &CalgaryCambridgeResult{})
	register(KindEPA, "Family Medicine EPA", "epa.txt", &EPAResult{})
	register(KindPsychiatric, "Psychiatric Interview", "psychiatric.txt", &PsychiatricResult{})
	register(KindSPIKES, "SPIKES Protocol", "spikes.txt", &SPIKESResult{})
	register(KindGeriatric, "Geriatric Assessment", "geriatric.txt", &GeriatricResult{})
	register(KindNonVerbal, "Non-Verbal Communication", "nonverbal.txt", &NonVerbalResult{})
	register(KindEmergency, "Emergency Medicine", "emergency.txt", &EmergencyResult{})
}

// Lookup returns the rubric for a kind.
func Lookup(kind Kind) (*Rubric, bool) {
	r, ok := registry[kind]
	return r, ok
}

// Schema returns the rubric's response schema.
func (r *Rubric) Schema() *genai.Schema {
	return r.schema
}

// BuildPrompt substitutes the case script and the rendered transcript into
// the rubric template.
func (r *Rubric) BuildPrompt(pcase models.PatientCase, entries []models.TranscriptEntry) string {
	prompt := strings.ReplaceAll(r.template, "{PATIENT_SCRIPT}", pcase.Script)
	return strings.ReplaceAll(prompt, "{TRANSCRIPT}", transcript.Render(entries))
}

// Parse strips code-fence markup from the raw response and unmarshals it
// into the rubric's result type.
func (r *Rubric) Parse(raw string) (Result, error) {
	cleaned := StripFences(raw)
	out := reflect.New(r.resultType).Interface().(Result)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return nil, fmt.Errorf("rubric %s: parse response: %w", r.Kind, err)
	}
	return out, nil
}

var fenceRE = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
