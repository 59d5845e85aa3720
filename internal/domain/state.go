package domain

// Fixed response sentinels. Stages compare against these verbatim, so they
// must never be reworded without migrating stored interactions.
const (
	WithheldSentinel = "The generated response was flagged as potentially unsafe and has been withheld. Please consult a doctor immediately."
	BlockedSentinel  = "Output blocked due to safety policy violation."
	ReasoningErrText = "Error in reasoning phase."
	NoGuidelinesText = "No guidelines retrieved."
	SystemErrorText  = "A system error occurred. Please consult a healthcare professional."

	// DefaultConfidence is used whenever a confidence score was never set or
	// could not be parsed from model output.
	DefaultConfidence = 0.6
)

// VisualFindings is the structured output of the vision stage.
type VisualFindings struct {
	Findings           string   `json:"visual_findings"`
	PossibleConditions []string `json:"possible_conditions,omitempty"`
	Confidence         float64  `json:"confidence"`
	SeverityLevel      string   `json:"severity_level"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
	UncertaintyNotes   string   `json:"uncertainty_notes,omitempty"`
}

// ConsultationState is the record threaded through every pipeline stage for
// one request. It is created at request start and discarded once the report
// stage has persisted its artifacts.
type ConsultationState struct {
	Message   string
	UserID    UserID
	SessionID SessionID
	CaseID    CaseID
	Language  Language
	Mode      InteractionMode

	ImageRef string // opaque reference to an uploaded image, empty if none

	PatientSummary string
	HistoryContext string
	Urgency        Urgency
	RetrievedDocs  string
	Diagnosis      string

	confidence    float64
	confidenceSet bool

	ValidationStatus ValidationStatus
	SafetyStatus     SafetyStatus
	RedFlags         []string

	criticalAlert       bool
	requiresHumanReview bool

	VisualFindings *VisualFindings

	ReportMedical             string
	ReportDoctorSummary       string
	ReportPatientInstructions string
	AppointmentDetails        string

	FinalResponse string

	// NextStep is the routing cursor; the executor owns it.
	NextStep string
}

// CriticalAlert reports whether any stage escalated this consultation.
func (s *ConsultationState) CriticalAlert() bool { return s.criticalAlert }

// RequiresHumanReview reports whether the run must surface to a reviewer.
func (s *ConsultationState) RequiresHumanReview() bool { return s.requiresHumanReview }

// RaiseCriticalAlert escalates the consultation. The flag is monotonic:
// there is deliberately no way to clear it.
func (s *ConsultationState) RaiseCriticalAlert() { s.criticalAlert = true }

// RequireHumanReview flags the run for review. Monotonic, like RaiseCriticalAlert.
func (s *ConsultationState) RequireHumanReview() { s.requiresHumanReview = true }

// Confidence returns the model confidence and whether one was ever set.
func (s *ConsultationState) Confidence() (float64, bool) {
	return s.confidence, s.confidenceSet
}

// ConfidenceOrDefault returns the confidence score, falling back to
// DefaultConfidence when unset.
func (s *ConsultationState) ConfidenceOrDefault() float64 {
	if !s.confidenceSet {
		return DefaultConfidence
	}
	return s.confidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// StateDelta is a partial update produced by one stage. Nil fields leave the
// state untouched; set fields overwrite it (right-biased merge). The two
// escalation flags can only be raised, never cleared, regardless of what a
// stage puts in the delta.
type StateDelta struct {
	CaseID         *CaseID
	PatientSummary *string
	HistoryContext *string
	Urgency        *Urgency
	RetrievedDocs  *string
	Diagnosis      *string
	Confidence     *float64

	ValidationStatus *ValidationStatus
	SafetyStatus     *SafetyStatus
	RedFlags         []string

	CriticalAlert       bool
	RequiresHumanReview bool

	VisualFindings *VisualFindings

	ReportMedical             *string
	ReportDoctorSummary       *string
	ReportPatientInstructions *string
	AppointmentDetails        *string

	FinalResponse *string

	// NextStep lets a stage hint the routing cursor (e.g. intake marking a
	// rejected run terminal); selectors may consult it.
	NextStep *string
}

// Apply merges a delta into the state.
func (s *ConsultationState) Apply(d StateDelta) {
	if d.CaseID != nil {
		s.CaseID = *d.CaseID
	}
	if d.PatientSummary != nil {
		s.PatientSummary = *d.PatientSummary
	}
	if d.HistoryContext != nil {
		s.HistoryContext = *d.HistoryContext
	}
	if d.Urgency != nil {
		s.Urgency = *d.Urgency
	}
	if d.RetrievedDocs != nil {
		s.RetrievedDocs = *d.RetrievedDocs
	}
	if d.Diagnosis != nil {
		s.Diagnosis = *d.Diagnosis
	}
	if d.Confidence != nil {
		s.confidence = clamp01(*d.Confidence)
		s.confidenceSet = true
	}
	if d.ValidationStatus != nil {
		s.ValidationStatus = *d.ValidationStatus
	}
	if d.SafetyStatus != nil {
		s.SafetyStatus = *d.SafetyStatus
	}
	if len(d.RedFlags) > 0 {
		s.RedFlags = append(s.RedFlags, d.RedFlags...)
	}
	if d.CriticalAlert {
		s.RaiseCriticalAlert()
	}
	if d.RequiresHumanReview {
		s.RequireHumanReview()
	}
	if d.VisualFindings != nil {
		s.VisualFindings = d.VisualFindings
	}
	if d.ReportMedical != nil {
		s.ReportMedical = *d.ReportMedical
	}
	if d.ReportDoctorSummary != nil {
		s.ReportDoctorSummary = *d.ReportDoctorSummary
	}
	if d.ReportPatientInstructions != nil {
		s.ReportPatientInstructions = *d.ReportPatientInstructions
	}
	if d.AppointmentDetails != nil {
		s.AppointmentDetails = *d.AppointmentDetails
	}
	if d.FinalResponse != nil {
		s.FinalResponse = *d.FinalResponse
	}
	if d.NextStep != nil {
		s.NextStep = *d.NextStep
	}
}

// Small helpers so stages can build deltas without local temporaries.

func Str(s string) *string                   { return &s }
func Float(f float64) *float64               { return &f }
func Urg(u Urgency) *Urgency                 { return &u }
func Valid(v ValidationStatus) *ValidationStatus { return &v }
func Safety(v SafetyStatus) *SafetyStatus    { return &v }
func CaseRef(id CaseID) *CaseID              { return &id }
