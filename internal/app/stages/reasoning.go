package stages

import (
	"context"
	"fmt"
	"time"

	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
	"medagent/internal/textproc"
)

const branchSystemPrompt = `You are a medical reasoning engine. Use ONLY the provided guidelines.
Produce exactly three labeled reasoning branches:
BRANCH A (conservative): the most evidence-bound interpretation, guidelines only.
BRANCH B (contextual): an interpretation that weighs the patient's history and prior context.
BRANCH C (differential): rarer conditions that must not be missed.
Be explicit about uncertainty in every branch.`

const selectSystemPrompt = `You are a medical reasoning evaluator.
Assess the three branches against consistency, safety, and evidence alignment, then pick the best.
Reply with a JSON object of the form {"diagnosis": "...", "confidence_score": 0.0} — the object may
be embedded in surrounding commentary.`

// Confidence tiers of the semi-structured extraction contract.
const (
	confidenceJSONDefault = 0.7  // JSON parsed but carried no score
	confidenceRawText     = 0.65 // no parseable JSON, raw text used as diagnosis
)

// Reasoning runs the multi-branch generate-then-select protocol: one call
// produces three labeled branches, a second call evaluates them and emits a
// semi-structured verdict consumed through the shared extraction contract.
type Reasoning struct {
	llm     domain.InferenceClient
	timeout time.Duration
}

func NewReasoning(llm domain.InferenceClient, timeout time.Duration) *Reasoning {
	return &Reasoning{llm: llm, timeout: timeout}
}

func (s *Reasoning) Name() string { return pipeline.StageReasoning }

func (s *Reasoning) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	log := observability.LoggerFromContext(ctx).With("stage", s.Name())

	branchPrompt := fmt.Sprintf(
		"GUIDELINES:\n%s\n\nPATIENT SUMMARY:\n%s\n\nPRIOR HISTORY:\n%s",
		st.RetrievedDocs, st.PatientSummary, st.HistoryContext,
	)
	branches, err := invoke(ctx, s.llm, s.timeout, branchSystemPrompt, branchPrompt, 0.2)
	if err != nil {
		log.Error("branch generation failed", "error", err)
		return domain.StateDelta{Diagnosis: domain.Str(domain.ReasoningErrText)}, nil
	}

	verdict, err := invoke(ctx, s.llm, s.timeout, selectSystemPrompt, branches, 0.0)
	if err != nil {
		log.Error("branch selection failed", "error", err)
		return domain.StateDelta{Diagnosis: domain.Str(domain.ReasoningErrText)}, nil
	}

	diagnosis, confidence := extractVerdict(verdict)
	return domain.StateDelta{
		Diagnosis:  domain.Str(diagnosis),
		Confidence: domain.Float(confidence),
	}, nil
}

// extractVerdict applies the three-tier contract: parse the JSON object
// embedded anywhere in the text; on success use its fields (defaulting a
// missing score); on parse failure treat the whole reply as the diagnosis.
func extractVerdict(text string) (diagnosis string, confidence float64) {
	var v struct {
		Diagnosis       string   `json:"diagnosis"`
		ConfidenceScore *float64 `json:"confidence_score"`
	}
	if textproc.ExtractJSON(text, &v) && v.Diagnosis != "" {
		if v.ConfidenceScore != nil {
			return v.Diagnosis, *v.ConfidenceScore
		}
		return v.Diagnosis, confidenceJSONDefault
	}
	return text, confidenceRawText
}
