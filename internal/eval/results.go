package eval

import "math"

// Section is one scored sub-dimension of a rubric. Score is a pointer so a
// sub-dimension the evaluator left unscored stays distinguishable from zero.
type Section struct {
	Score    *float64 `json:"score" desc:"Score (1-100) for this section."`
	Feedback string   `json:"feedback" desc:"Balanced feedback for this section."`
}

// Result is a parsed rubric evaluation. AggregateScore is the rounded mean
// of the sub-dimension scores that are present; nil when none are.
type Result interface {
	AggregateScore() *int
}

// sectionMean averages the present scores, rounded to nearest integer.
func sectionMean(sections ...Section) *int {
	var sum float64
	var n int
	for _, s := range sections {
		if s.Score != nil {
			sum += *s.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := int(math.Round(sum / float64(n)))
	return &v
}

// SegueResult follows the SEGUE communication framework.
type SegueResult struct {
	SetTheStage          Section  `json:"setTheStage"`
	ElicitInformation    Section  `json:"elicitInformation"`
	GiveInformation      Section  `json:"giveInformation"`
	UnderstandThePatient Section  `json:"understandThePatient"`
	EndTheEncounter      Section  `json:"endTheEncounter"`
	KeyTakeaways         []string `json:"keyTakeaways" desc:"A list of exactly 3 big-picture takeaways from the encounter."`
	PatientFeedback      string   `json:"patientFeedback" desc:"A 2-3 sentence closing statement from the patient's perspective on how they felt during the interview."`
	OverallImpression    string   `json:"overallImpression" desc:"A summary of the student's overall performance, referencing the SEGUE framework."`
}

func (r *SegueResult) AggregateScore() *int {
	return sectionMean(r.SetTheStage, r.ElicitInformation, r.GiveInformation,
		r.UnderstandThePatient, r.EndTheEncounter)
}

// CalgaryCambridgeResult follows the Calgary-Cambridge guide's main sections.
type CalgaryCambridgeResult struct {
	InitiatingTheSession    Section `json:"initiatingTheSession"`
	GatheringInformation    Section `json:"gatheringInformation"`
	BuildingTheRelationship Section `json:"buildingTheRelationship"`
	PatientFeedback         string  `json:"patientFeedback" desc:"A 2-3 sentence closing statement from the patient's perspective."`
	OverallImpression       string  `json:"overallImpression" desc:"A summary of the student's overall performance from the Calgary-Cambridge perspective."`
}

func (r *CalgaryCambridgeResult) AggregateScore() *int {
	return sectionMean(r.InitiatingTheSession, r.GatheringInformation, r.BuildingTheRelationship)
}

// EPAResult carries a Family Medicine EPA entrustability rating (1-5 scale).
type EPAResult struct {
	EpaTitle            string   `json:"epaTitle" desc:"The title of the EPA being assessed."`
	EntrustabilityScore *float64 `json:"entrustabilityScore" desc:"The entrustability score from 1 to 5."`
	Feedback            string   `json:"feedback" desc:"Detailed justification for the entrustability score, with balanced feedback."`
}

func (r *EPAResult) AggregateScore() *int {
	if r.EntrustabilityScore == nil {
		return nil
	}
	v := int(math.Round(*r.EntrustabilityScore))
	return &v
}

// PsychiatricResult covers psychiatric interviewing technique.
type PsychiatricResult struct {
	TherapeuticAlliance      Section `json:"therapeuticAlliance"`
	RiskAssessment           Section `json:"riskAssessment"`
	MentalStatusExploration  Section `json:"mentalStatusExploration"`
	PsychosocialHistory      Section `json:"psychosocialHistory"`
	PatientFeedback          string  `json:"patientFeedback" desc:"A 2-3 sentence closing statement from the patient's perspective."`
	OverallImpression        string  `json:"overallImpression" desc:"A summary of the student's psychiatric interviewing performance."`
}

func (r *PsychiatricResult) AggregateScore() *int {
	return sectionMean(r.TherapeuticAlliance, r.RiskAssessment,
		r.MentalStatusExploration, r.PsychosocialHistory)
}

// SPIKESResult follows the SPIKES protocol for difficult conversations.
type SPIKESResult struct {
	Setting            Section `json:"setting"`
	Perception         Section `json:"perception"`
	Invitation         Section `json:"invitation"`
	Knowledge          Section `json:"knowledge"`
	Empathy            Section `json:"empathy"`
	StrategyAndSummary Section `json:"strategyAndSummary"`
	PatientFeedback    string  `json:"patientFeedback" desc:"A 2-3 sentence closing statement from the patient's perspective."`
	OverallImpression  string  `json:"overallImpression" desc:"A summary of the student's performance delivering difficult news."`
}

func (r *SPIKESResult) AggregateScore() *int {
	return sectionMean(r.Setting, r.Perception, r.Invitation,
		r.Knowledge, r.Empathy, r.StrategyAndSummary)
}

// GeriatricResult covers geriatric-specific assessment domains.
type GeriatricResult struct {
	FunctionalAssessment Section `json:"functionalAssessment"`
	PolypharmacyReview   Section `json:"polypharmacyReview"`
	CognitionAndMood     Section `json:"cognitionAndMood"`
	GoalsOfCare          Section `json:"goalsOfCare"`
	PatientFeedback      string  `json:"patientFeedback" desc:"A 2-3 sentence closing statement from the patient's perspective."`
	OverallImpression    string  `json:"overallImpression" desc:"A summary of the student's geriatric assessment performance."`
}

func (r *GeriatricResult) AggregateScore() *int {
	return sectionMean(r.FunctionalAssessment, r.PolypharmacyReview,
		r.CognitionAndMood, r.GoalsOfCare)
}

// NonVerbalResult scores cues inferable from the transcript's language.
type NonVerbalResult struct {
	PacingAndPauses   Section `json:"pacingAndPauses"`
	ActiveListening   Section `json:"activeListening"`
	ToneAndWarmth     Section `json:"toneAndWarmth"`
	OverallImpression string  `json:"overallImpression" desc:"A summary of the student's non-verbal communication as inferred from the transcript."`
}

func (r *NonVerbalResult) AggregateScore() *int {
	return sectionMean(r.PacingAndPauses, r.ActiveListening, r.ToneAndWarmth)
}

// EmergencyResult covers performance in a time-critical presentation.
type EmergencyResult struct {
	RapidAssessment            Section `json:"rapidAssessment"`
	Prioritization             Section `json:"prioritization"`
	CommunicationUnderPressure Section `json:"communicationUnderPressure"`
	DispositionAndSafety       Section `json:"dispositionAndSafety"`
	PatientFeedback            string  `json:"patientFeedback" desc:"A 2-3 sentence closing statement from the patient's perspective."`
	OverallImpression          string  `json:"overallImpression" desc:"A summary of the student's performance in a time-critical encounter."`
}

func (r *EmergencyResult) AggregateScore() *int {
	return sectionMean(r.RapidAssessment, r.Prioritization,
		r.CommunicationUnderPressure, r.DispositionAndSafety)
}
