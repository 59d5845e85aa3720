package stages

import (
	"context"
	"strings"
	"time"

	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
)

// Knowledge is a thin pass-through to the guideline retriever. Retrieval
// failure degrades to a fixed sentinel; it never aborts the run.
type Knowledge struct {
	lookup  domain.KnowledgeLookup
	timeout time.Duration
}

func NewKnowledge(lookup domain.KnowledgeLookup, timeout time.Duration) *Knowledge {
	return &Knowledge{lookup: lookup, timeout: timeout}
}

func (s *Knowledge) Name() string { return pipeline.StageKnowledge }

func (s *Knowledge) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	query := st.PatientSummary
	if strings.TrimSpace(query) == "" {
		query = st.Message
	}

	callCtx, cancel := context.WithTimeout(ctx, s.effectiveTimeout())
	defer cancel()

	docs, err := s.lookup.Retrieve(callCtx, query)
	if err != nil || strings.TrimSpace(docs) == "" {
		if err != nil {
			observability.LoggerFromContext(ctx).Error("knowledge retrieval failed", "stage", s.Name(), "error", err)
		}
		docs = domain.NoGuidelinesText
	}
	return domain.StateDelta{RetrievedDocs: domain.Str(docs)}, nil
}

func (s *Knowledge) effectiveTimeout() time.Duration {
	if s.timeout <= 0 {
		return DefaultInferenceTimeout
	}
	return s.timeout
}
