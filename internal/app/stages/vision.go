package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
	"medagent/internal/textproc"
)

const visionSystemPrompt = `You are a clinical image analysis assistant.
Describe the visual findings of the referenced medical image objectively. Do NOT provide a
definitive diagnosis. Reply with a JSON object of the form
{"visual_findings": "...", "possible_conditions": [], "confidence": 0.0,
 "severity_level": "low|moderate|high|critical", "recommended_actions": [], "uncertainty_notes": "..."}.
The object may be embedded in surrounding commentary.`

// visionReviewThreshold: findings below this confidence always surface to a
// human reviewer.
const visionReviewThreshold = 0.7

// Vision analyzes an attached medical image through the inference backend
// and records structured findings for triage to consume as text.
type Vision struct {
	llm     domain.InferenceClient
	timeout time.Duration
}

func NewVision(llm domain.InferenceClient, timeout time.Duration) *Vision {
	return &Vision{llm: llm, timeout: timeout}
}

func (s *Vision) Name() string { return pipeline.StageVision }

func (s *Vision) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	log := observability.LoggerFromContext(ctx).With("stage", s.Name())

	prompt := fmt.Sprintf("Image reference: %s\nPatient message: %s", st.ImageRef, st.Message)
	reply, err := invoke(ctx, s.llm, s.timeout, visionSystemPrompt+"\n"+langInstruction(st.Language), prompt, 0.0)
	if err != nil {
		log.Error("vision inference failed", "error", err)
		return domain.StateDelta{
			VisualFindings: &domain.VisualFindings{
				Findings:         "Image analysis unavailable.",
				Confidence:       0,
				SeverityLevel:    "moderate",
				UncertaintyNotes: "Vision analysis failed; findings unavailable.",
			},
			RequiresHumanReview: true,
		}, nil
	}

	findings := parseVisualFindings(reply)
	delta := domain.StateDelta{VisualFindings: findings}

	severity := strings.ToLower(findings.SeverityLevel)
	if findings.Confidence < visionReviewThreshold || severity == "high" || severity == "critical" {
		delta.RequiresHumanReview = true
	}
	if severity == "critical" {
		delta.CriticalAlert = true
	}
	return delta, nil
}

// parseVisualFindings consumes the model reply through the shared
// extraction contract; unstructured replies become the findings text with a
// conservative default confidence.
func parseVisualFindings(text string) *domain.VisualFindings {
	var v domain.VisualFindings
	if textproc.ExtractJSON(text, &v) && v.Findings != "" {
		if v.SeverityLevel == "" {
			v.SeverityLevel = "moderate"
		}
		return &v
	}
	return &domain.VisualFindings{
		Findings:         text,
		Confidence:       0.5,
		SeverityLevel:    "moderate",
		UncertaintyNotes: "Could not parse structured output from vision model",
	}
}
