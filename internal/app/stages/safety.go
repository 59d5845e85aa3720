package stages

import (
	"context"
	"strings"
	"time"

	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
	"medagent/internal/textproc"
)

const safetySystemPrompt = `You are a medical safety reviewer. Protect the user.
Review the content for harmful advice, self-harm encouragement, or fabricated treatments.
Reply with a JSON object of the form
{"risk_level": "LOW|MEDIUM|HIGH|CRITICAL", "red_flags": ["..."], "safety_status": "SAFE|UNSAFE"}.
The object may be embedded in surrounding commentary.`

// Safety is the final guardrail state machine. Rules run in fixed order:
// injection in the diagnosis blocks the run outright; a model UNSAFE verdict
// withholds the diagnosis and forces a critical alert; high risk or a
// heuristic hit escalates without withholding. The human-review flag is the
// OR of the critical alert and a validation warning, and is never reset.
type Safety struct {
	llm     domain.InferenceClient
	timeout time.Duration
}

func NewSafety(llm domain.InferenceClient, timeout time.Duration) *Safety {
	return &Safety{llm: llm, timeout: timeout}
}

func (s *Safety) Name() string { return pipeline.StageSafety }

func (s *Safety) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	log := observability.LoggerFromContext(ctx).With("stage", s.Name())

	if injected, patterns := textproc.DetectInjection(st.Diagnosis); injected {
		log.Warn("diagnosis blocked: injection patterns in output", "patterns", patterns)
		return domain.StateDelta{
			SafetyStatus:        domain.Safety(domain.SafetyBlocked),
			Diagnosis:           domain.Str(domain.BlockedSentinel),
			FinalResponse:       domain.Str(domain.BlockedSentinel),
			CriticalAlert:       true,
			RequiresHumanReview: true,
		}, nil
	}

	heuristicHit, _ := textproc.DetectCriticalKeywords(st.Diagnosis)

	delta := domain.StateDelta{}
	reply, err := invoke(ctx, s.llm, s.timeout, safetySystemPrompt, st.Diagnosis, 0.0)
	if err != nil {
		log.Error("safety inference failed", "error", err)
		delta.SafetyStatus = domain.Safety(domain.SafetyError)
	} else {
		verdict := parseSafetyVerdict(reply)
		switch {
		case verdict.unsafe:
			log.Warn("diagnosis withheld: model flagged unsafe")
			delta.SafetyStatus = domain.Safety(domain.SafetyUnsafe)
			delta.Diagnosis = domain.Str(domain.WithheldSentinel)
			delta.CriticalAlert = true
		case verdict.risk == domain.RiskHigh || verdict.risk == domain.RiskCritical:
			delta.SafetyStatus = domain.Safety(domain.SafetySafe)
			delta.CriticalAlert = true
		default:
			delta.SafetyStatus = domain.Safety(domain.SafetySafe)
		}
		delta.RedFlags = verdict.redFlags
	}

	// The heuristic escalates independently of whatever the model said.
	if heuristicHit {
		delta.CriticalAlert = true
	}

	if delta.CriticalAlert || st.CriticalAlert() || st.ValidationStatus == domain.ValidationWarning {
		delta.RequiresHumanReview = true
	}
	return delta, nil
}

type safetyVerdict struct {
	unsafe   bool
	risk     domain.RiskLevel
	redFlags []string
}

// parseSafetyVerdict consumes the model reply through the shared extraction
// contract; non-JSON replies fall back to a plain UNSAFE substring scan.
func parseSafetyVerdict(text string) safetyVerdict {
	var v struct {
		RiskLevel    string   `json:"risk_level"`
		RedFlags     []string `json:"red_flags"`
		SafetyStatus string   `json:"safety_status"`
	}
	if textproc.ExtractJSON(text, &v) {
		return safetyVerdict{
			unsafe:   strings.EqualFold(v.SafetyStatus, "UNSAFE"),
			risk:     domain.RiskLevel(strings.ToUpper(v.RiskLevel)),
			redFlags: v.RedFlags,
		}
	}
	return safetyVerdict{unsafe: strings.Contains(strings.ToUpper(text), "UNSAFE")}
}
