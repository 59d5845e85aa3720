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

const triageSystemPrompt = `You are a medical triage classifier.
Given the patient's message, produce:
1. A structured restatement starting with the exact tag "PATIENT SUMMARY:".
2. An urgency classification on its own line in the exact form "URGENCY: <LEVEL>"
   where <LEVEL> is one of LOW, MEDIUM, HIGH, EMERGENCY.
Classify strictly. When in doubt between two levels, pick the higher one.`

// Triage classifies urgency. A heuristic critical-keyword scan runs
// independently of the model and is authoritative for safety: it can only
// raise the model's urgency, never lower it.
type Triage struct {
	llm     domain.InferenceClient
	timeout time.Duration
}

func NewTriage(llm domain.InferenceClient, timeout time.Duration) *Triage {
	return &Triage{llm: llm, timeout: timeout}
}

func (s *Triage) Name() string { return pipeline.StageTriage }

func (s *Triage) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	log := observability.LoggerFromContext(ctx).With("stage", s.Name())

	input := st.Message
	if st.VisualFindings != nil && st.VisualFindings.Findings != "" {
		input += fmt.Sprintf("\n[VISUAL FINDINGS]: %s\nConfidence: %.2f, Severity: %s",
			st.VisualFindings.Findings, st.VisualFindings.Confidence, st.VisualFindings.SeverityLevel)
	}

	isCritical, keywords := textproc.DetectCriticalKeywords(input)
	if isCritical {
		log.Warn("critical keywords detected", "keywords", keywords)
	}

	reply, err := invoke(ctx, s.llm, s.timeout, triageSystemPrompt+"\n"+langInstruction(st.Language), input, 0.0)
	if err != nil {
		// Degraded triage: the heuristic alone decides.
		log.Error("triage inference failed, falling back to heuristic", "error", err)
		urgency := domain.UrgencyMedium
		if isCritical {
			urgency = domain.UrgencyEmergency
		}
		return domain.StateDelta{
			Urgency:       domain.Urg(urgency),
			CriticalAlert: urgency == domain.UrgencyEmergency,
		}, nil
	}

	urgency := parseUrgency(reply)
	if isCritical {
		urgency = domain.UrgencyEmergency
	}

	delta := domain.StateDelta{
		Urgency:       domain.Urg(urgency),
		CriticalAlert: urgency == domain.UrgencyEmergency,
	}
	if summary := parseSummary(reply); summary != "" {
		delta.PatientSummary = domain.Str(summary)
	}
	return delta, nil
}

func parseUrgency(content string) domain.Urgency {
	switch {
	case strings.Contains(content, "URGENCY: EMERGENCY"):
		return domain.UrgencyEmergency
	case strings.Contains(content, "URGENCY: HIGH"):
		return domain.UrgencyHigh
	case strings.Contains(content, "URGENCY: MEDIUM"):
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}

func parseSummary(content string) string {
	_, after, found := strings.Cut(content, "PATIENT SUMMARY:")
	if !found {
		return ""
	}
	summary, _, _ := strings.Cut(after, "URGENCY:")
	return strings.TrimSpace(summary)
}
