package eval

import "ai-patient-sim-service/internal/models"

// Rule maps a case attribute to a specialty rubric. Exactly one of Tag or
// CaseID is set. Rules are checked in order; the first match wins.
type Rule struct {
	Tag    string
	CaseID int
	Kind   Kind
}

// DefaultRules is the documented specialty-selection priority:
// emergency tag, then psychiatry tag, then breaking-bad-news tag, then the
// vestibular-geriatric case override, then the EPA default below.
var DefaultRules = []Rule{
	{Tag: "Emergency", Kind: KindEmergency},
	{Tag: "Psychiatry", Kind: KindPsychiatric},
	{Tag: "Breaking Bad News", Kind: KindSPIKES},
	{CaseID: 10, Kind: KindGeriatric},
}

// DefaultSpecialty applies when no rule matches.
const DefaultSpecialty = KindEPA

// coreKinds always run, bracketing the specialty rubric.
var coreKinds = []Kind{KindSegue, KindCalgaryCambridge}

// SelectRubrics returns the rubric set for a case: the core communication
// pair, exactly one specialty rubric chosen by the rules, and the non-verbal
// rubric.
func SelectRubrics(pcase models.PatientCase, rules []Rule) []Kind {
	if rules == nil {
		rules = DefaultRules
	}
	specialty := DefaultSpecialty
	for _, rule := range rules {
		if rule.Tag != "" && pcase.HasTag(rule.Tag) {
			specialty = rule.Kind
			break
		}
		if rule.Tag == "" && rule.CaseID == pcase.ID {
			specialty = rule.Kind
			break
		}
	}

	kinds := make([]Kind, 0, len(coreKinds)+2)
	kinds = append(kinds, coreKinds...)
	kinds = append(kinds, specialty, KindNonVerbal)
	return kinds
}
