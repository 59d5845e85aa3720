// Package stages implements the consultation pipeline stage handlers.
// Every handler owns its fallbacks: an inference timeout or malformed model
// reply degrades to documented defaults inside the stage and never escapes
// to the executor.
package stages

import (
	"context"
	"time"

	"medagent/internal/domain"
)

// DefaultInferenceTimeout bounds a single model call when the caller does
// not configure one. The pipeline must never block indefinitely on the
// inference backend.
const DefaultInferenceTimeout = 30 * time.Second

// invoke wraps one inference call with a bounded timeout.
func invoke(ctx context.Context, llm domain.InferenceClient, timeout time.Duration, system, user string, temperature float32) (string, error) {
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return llm.Invoke(callCtx, system, user, temperature)
}

func langInstruction(lang domain.Language) string {
	if lang == domain.LangArabic {
		return "IMPORTANT: Respond in Arabic (اللغة العربية). Keep section tags in English for parsing."
	}
	return "IMPORTANT: Respond in English."
}
