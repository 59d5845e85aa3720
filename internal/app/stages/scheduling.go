package stages

import (
	"context"
	"fmt"
	"strings"

	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/textproc"
)

// specialtyHints maps symptom vocabulary to a recommended specialty. The
// fallback is general practice.
var specialtyHints = []struct {
	keywords  []string
	specialty string
}{
	{[]string{"chest", "heart", "cardiac", "palpitation"}, "Cardiology"},
	{[]string{"skin", "rash", "mole", "itch"}, "Dermatology"},
	{[]string{"headache", "dizzi", "numb", "seizure", "stroke"}, "Neurology"},
	{[]string{"stomach", "abdominal", "nausea", "diarrhea"}, "Gastroenterology"},
	{[]string{"breath", "cough", "wheez", "asthma"}, "Pulmonology"},
	{[]string{"anxiety", "depress", "mood", "panic"}, "Psychiatry"},
}

// Scheduling produces a priority-aware appointment summary. It never talks
// to a calendar backend; it only renders the structured recommendation the
// external calendar collaborator consumes.
type Scheduling struct{}

func NewScheduling() *Scheduling { return &Scheduling{} }

func (s *Scheduling) Name() string { return pipeline.StageScheduling }

func (s *Scheduling) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	caseText := st.PatientSummary + " " + st.Diagnosis + " " + st.Message

	isEmergency := st.CriticalAlert()
	if !isEmergency {
		isEmergency, _ = textproc.DetectCriticalKeywords(caseText)
	}

	priority, timing := "Routine", "Within 2 weeks"
	if isEmergency {
		priority, timing = "EMERGENCY", "Immediately - go to the nearest emergency department"
	}

	details := fmt.Sprintf(
		"### APPOINTMENT INFORMATION ###\n"+
			"Priority: %s\n"+
			"Recommended Specialty: %s\n"+
			"Timing: %s\n"+
			"\nNote: This is a generic recommendation. Please consult with your local healthcare provider.",
		priority, inferSpecialty(caseText), timing,
	)

	delta := domain.StateDelta{
		AppointmentDetails: domain.Str(details),
		FinalResponse:      domain.Str(details),
		CriticalAlert:      isEmergency,
	}
	return delta, nil
}

func inferSpecialty(text string) string {
	lower := strings.ToLower(text)
	for _, hint := range specialtyHints {
		for _, kw := range hint.keywords {
			if strings.Contains(lower, kw) {
				return hint.specialty
			}
		}
	}
	return "General Practice"
}
