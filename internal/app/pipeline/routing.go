package pipeline

import (
	"strings"

	"medagent/internal/domain"
)

// Intent keyword sets, English and Arabic pairs per intent. Matching is a
// case-insensitive substring scan of the latest user message.
var (
	schedulingKeywords = []string{
		"book", "schedule", "appointment",
		"احجز", "موعد",
	}
	medicationKeywords = []string{
		"medication", "medicine", "pill", "dose", "drug",
		"دواء", "حبوب", "جرعة",
	}
)

// RouteIntent picks the stage that follows intake. Fixed priority order:
// an attached image wins, then scheduling, then medication; everything else
// (including empty input) goes to triage. Pure function of its inputs.
func RouteIntent(message string, imageAttached bool) string {
	if imageAttached {
		return StageVision
	}
	lower := strings.ToLower(message)
	for _, kw := range schedulingKeywords {
		if strings.Contains(lower, kw) {
			return StageScheduling
		}
	}
	for _, kw := range medicationKeywords {
		if strings.Contains(lower, kw) {
			return StageMedication
		}
	}
	return StageTriage
}

// IntakeSelector adapts RouteIntent to the graph, short-circuiting to the
// terminal when intake rejected the input.
func IntakeSelector(st *domain.ConsultationState) string {
	if st.NextStep == StageEnd {
		return StageEnd
	}
	return RouteIntent(st.Message, st.ImageRef != "")
}

// SafetySelector ends the run on a policy block; everything else proceeds
// to reporting.
func SafetySelector(st *domain.ConsultationState) string {
	if st.SafetyStatus == domain.SafetyBlocked {
		return StageEnd
	}
	return StageReport
}
