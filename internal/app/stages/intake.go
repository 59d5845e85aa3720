package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medagent/internal/app/governance"
	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
	"medagent/internal/textproc"
)

const intakeSystemPrompt = `You are the intake assistant of a medical consultation service.
Summarize the patient's presenting symptoms from their message and the supplied history context.
Start the summary with the exact tag "PATIENT SUMMARY:" followed by a concise clinical restatement.
Do not diagnose. Do not invent history that was not provided.`

// insufficientSummary is the degraded summary used when the intake model
// call fails; the run continues rather than aborting.
const insufficientSummary = "PATIENT SUMMARY: Insufficient information extracted from intake."

// Intake validates and contextualizes the incoming message: it rejects bad
// input terminally, lazily opens the user's case, pulls profile and memory
// context, and produces a structured patient summary.
type Intake struct {
	llm     domain.InferenceClient
	coord   *governance.Coordinator
	timeout time.Duration
}

func NewIntake(llm domain.InferenceClient, coord *governance.Coordinator, timeout time.Duration) *Intake {
	return &Intake{llm: llm, coord: coord, timeout: timeout}
}

func (s *Intake) Name() string { return pipeline.StageIntake }

func (s *Intake) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	log := observability.LoggerFromContext(ctx).With("stage", s.Name())

	msg := textproc.Sanitize(st.Message)
	if ok, reason := textproc.ValidateInput(msg); !ok {
		log.Warn("input rejected", "reason", reason)
		return domain.StateDelta{
			PatientSummary: domain.Str("Input validation failed: " + reason),
			FinalResponse:  domain.Str(fmt.Sprintf("Input validation failed: %s. Please try again.", reason)),
			NextStep:       domain.Str(pipeline.StageEnd),
		}, nil
	}

	delta := domain.StateDelta{}

	medicalCase, err := s.coord.GetOrCreateCase(ctx, st.UserID)
	if err != nil {
		// Persistence trouble degrades to a caseless run.
		log.Error("case lookup failed", "error", err)
	} else if medicalCase != nil {
		delta.CaseID = domain.CaseRef(medicalCase.ID)
	}

	history := s.historyContext(ctx, st)
	delta.HistoryContext = domain.Str(history)

	system := strings.Join([]string{
		"Patient History Context: " + history,
		"Long-Term Conversation Memory:\n" + s.coord.LongTermMemory(ctx, st.UserID),
		s.coord.MemoryGraphContext(ctx, st.UserID),
		langInstruction(st.Language),
		intakeSystemPrompt,
	}, "\n")

	reply, err := invoke(ctx, s.llm, s.timeout, system, msg, 0.3)
	if err != nil {
		log.Error("intake inference failed, using degraded summary", "error", err)
		delta.PatientSummary = domain.Str(insufficientSummary)
		return delta, nil
	}

	delta.PatientSummary = domain.Str(reply)
	return delta, nil
}

func (s *Intake) historyContext(ctx context.Context, st *domain.ConsultationState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interaction Mode: %s, Language: %s\n", st.Mode, st.Language)
	if profile := s.coord.Profile(ctx, st.UserID); profile != nil {
		fmt.Fprintf(&b, "Patient Details - Age: %d, Gender: %s\n", profile.Age, profile.Gender)
		if profile.History != "" {
			fmt.Fprintf(&b, "Profile History: %s\n", profile.History)
		}
	} else {
		b.WriteString("Medical History: New Patient (Guest)\n")
	}
	return b.String()
}
