package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
)

const validationSystemPrompt = `You are a medical validation checker. Strict fact-checking only.
Score the proposed diagnosis against this five-point checklist, one line each, PASS or FAIL:
1. symptom-based  2. knowledge-supported  3. medically logical  4. safety-checked  5. uncertainty-disclosed
Finish with a final verdict line: "VALID" if every point passes, otherwise "ISSUE: <reason>".`

// Validation cross-checks the diagnosis against the retrieved evidence.
// A failed check appends a warning block to the diagnosis rather than
// replacing it; an inference failure leaves the run untouched.
type Validation struct {
	llm     domain.InferenceClient
	timeout time.Duration
}

func NewValidation(llm domain.InferenceClient, timeout time.Duration) *Validation {
	return &Validation{llm: llm, timeout: timeout}
}

func (s *Validation) Name() string { return pipeline.StageValidation }

func (s *Validation) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	if strings.TrimSpace(st.Diagnosis) == "" {
		return domain.StateDelta{ValidationStatus: domain.Valid(domain.ValidationSkipped)}, nil
	}

	prompt := fmt.Sprintf(
		"EVIDENCE (GUIDELINES):\n%s\n\nPATIENT SUMMARY:\n%s\n\nPROPOSED DIAGNOSIS:\n%s",
		st.RetrievedDocs, st.PatientSummary, st.Diagnosis,
	)
	reply, err := invoke(ctx, s.llm, s.timeout, validationSystemPrompt, prompt, 0.0)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("validation inference failed", "stage", s.Name(), "error", err)
		return domain.StateDelta{ValidationStatus: domain.Valid(domain.ValidationError)}, nil
	}

	// "ISSUE" anywhere outranks "VALID" appearing alongside it.
	if strings.Contains(reply, "ISSUE") || !strings.Contains(reply, "VALID") {
		annotated := st.Diagnosis + "\n\n[VALIDATION WARNING]: " + reply
		return domain.StateDelta{
			Diagnosis:        domain.Str(annotated),
			ValidationStatus: domain.Valid(domain.ValidationWarning),
		}, nil
	}
	return domain.StateDelta{ValidationStatus: domain.Valid(domain.ValidationValid)}, nil
}
