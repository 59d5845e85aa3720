// Package consult is the request-level entry point of the consultation
// pipeline: admission control, language detection, entry-state construction,
// the pipeline run itself, and persistence of the completed interaction.
package consult

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medagent/internal/app/governance"
	"medagent/internal/app/pipeline"
	"medagent/internal/app/stages"
	"medagent/internal/domain"
	"medagent/internal/observability"
	"medagent/internal/ratelimit"
	"medagent/internal/textproc"
)

// Service runs one synchronous pipeline per request. There is no
// intra-request parallelism: each stage's external call blocks the run.
type Service struct {
	executor *pipeline.Executor
	coord    *governance.Coordinator
	limiter  *ratelimit.Limiter
}

type Options struct {
	LLM              domain.InferenceClient
	Knowledge        domain.KnowledgeLookup
	Coordinator      *governance.Coordinator
	InferenceTimeout time.Duration
	MaxStageHops     int
	RatePerMinute    int
}

func NewService(opts Options) (*Service, error) {
	graph := BuildGraph(opts.LLM, opts.Knowledge, opts.Coordinator, opts.InferenceTimeout)
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Service{
		executor: pipeline.NewExecutor(graph, opts.MaxStageHops),
		coord:    opts.Coordinator,
		limiter:  ratelimit.New(perMinute),
	}, nil
}

// BuildGraph wires the reference topology. Kept separate from NewService so
// tests can assert on the topology itself.
func BuildGraph(llm domain.InferenceClient, knowledge domain.KnowledgeLookup, coord *governance.Coordinator, timeout time.Duration) *pipeline.Graph {
	g := pipeline.NewGraph(pipeline.StageIntake)
	g.AddConditionalStage(pipeline.StageIntake, stages.NewIntake(llm, coord, timeout), pipeline.IntakeSelector)
	g.AddStage(pipeline.StageVision, stages.NewVision(llm, timeout), pipeline.StageTriage)
	g.AddStage(pipeline.StageTriage, stages.NewTriage(llm, timeout), pipeline.StageKnowledge)
	g.AddStage(pipeline.StageKnowledge, stages.NewKnowledge(knowledge, timeout), pipeline.StageReasoning)
	g.AddStage(pipeline.StageReasoning, stages.NewReasoning(llm, timeout), pipeline.StageValidation)
	g.AddStage(pipeline.StageValidation, stages.NewValidation(llm, timeout), pipeline.StageSafety)
	g.AddConditionalStage(pipeline.StageSafety, stages.NewSafety(llm, timeout), pipeline.SafetySelector)
	g.AddStage(pipeline.StageReport, stages.NewReport(llm, coord, timeout), pipeline.StageEnd)
	g.AddStage(pipeline.StageScheduling, stages.NewScheduling(), pipeline.StageEnd)
	g.AddStage(pipeline.StageMedication, stages.NewMedication(coord), pipeline.StageEnd)
	return g
}

type Input struct {
	UserID   domain.UserID
	Message  string
	ImageRef string
	Mode     domain.InteractionMode

	// ClientID keys the rate limiter; defaults to the user id.
	ClientID string
}

// Result is the structured projection of the final pipeline state handed to
// external collaborators (renderer, calendar, UI).
type Result struct {
	SessionID                 domain.SessionID
	CaseID                    domain.CaseID
	Language                  domain.Language
	Urgency                   domain.Urgency
	Diagnosis                 string
	Confidence                float64
	ValidationStatus          domain.ValidationStatus
	SafetyStatus              domain.SafetyStatus
	CriticalAlert             bool
	RequiresHumanReview       bool
	ReportMedical             string
	ReportDoctorSummary       string
	ReportPatientInstructions string
	AppointmentDetails        string
	FinalResponse             string
}

// Consult runs the whole pipeline for one message. Rejections (rate limit,
// invalid input) happen before any consultation state or case is created.
func (s *Service) Consult(ctx context.Context, in Input) (*Result, error) {
	clientID := in.ClientID
	if clientID == "" {
		clientID = string(in.UserID)
	}
	if allowed, retryAfter := s.limiter.Allow(clientID); !allowed {
		return nil, &domain.RateLimitError{RetryAfterSeconds: retryAfter}
	}

	sanitized := textproc.Sanitize(in.Message)
	if ok, reason := textproc.ValidateInput(sanitized); !ok {
		return nil, &domain.InvalidInputError{Reason: reason}
	}

	sessionID := domain.SessionID(uuid.NewString())
	ctx = observability.WithSessionID(ctx, string(sessionID))
	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID)
	log.Info("consultation started")

	userID := in.UserID
	if userID == "" {
		userID = domain.GuestUser
	}
	mode := in.Mode
	if mode == "" {
		mode = domain.ModePatient
	}

	st := &domain.ConsultationState{
		Message:      sanitized,
		UserID:       userID,
		SessionID:    sessionID,
		Language:     domain.Language(textproc.DetectLanguage(sanitized)),
		Mode:         mode,
		ImageRef:     in.ImageRef,
		SafetyStatus: domain.SafetySafe,
	}

	if _, err := s.executor.Run(ctx, st); err != nil {
		log.Error("pipeline run failed", "error", err)
		s.coord.LogSystemEvent(ctx, "ERROR", "consult", "pipeline run failed: "+err.Error(), sessionID)
		return &Result{
			SessionID:     sessionID,
			Language:      st.Language,
			FinalResponse: domain.SystemErrorText,
		}, err
	}

	// Escalation holds on every terminal path, including the scheduling and
	// medication shortcuts that never reach the safety gate.
	if st.CriticalAlert() || st.ValidationStatus == domain.ValidationWarning {
		st.Apply(domain.StateDelta{RequiresHumanReview: true})
	}

	if _, err := s.coord.SaveInteraction(ctx, st); err != nil {
		// Best-effort: the user still gets their response.
		log.Error("interaction persistence failed", "error", err)
		s.coord.LogSystemEvent(ctx, "ERROR", "consult", "interaction persistence failed: "+err.Error(), sessionID)
	}
	s.coord.LogSystemEvent(ctx, "INFO", "consult", "consultation complete", sessionID)
	log.Info("consultation complete",
		"urgency", st.Urgency,
		"critical_alert", st.CriticalAlert(),
		"requires_review", st.RequiresHumanReview())

	return &Result{
		SessionID:                 sessionID,
		CaseID:                    st.CaseID,
		Language:                  st.Language,
		Urgency:                   st.Urgency,
		Diagnosis:                 st.Diagnosis,
		Confidence:                st.ConfidenceOrDefault(),
		ValidationStatus:          st.ValidationStatus,
		SafetyStatus:              st.SafetyStatus,
		CriticalAlert:             st.CriticalAlert(),
		RequiresHumanReview:       st.RequiresHumanReview(),
		ReportMedical:             st.ReportMedical,
		ReportDoctorSummary:       st.ReportDoctorSummary,
		ReportPatientInstructions: st.ReportPatientInstructions,
		AppointmentDetails:        st.AppointmentDetails,
		FinalResponse:             st.FinalResponse,
	}, nil
}
