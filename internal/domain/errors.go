package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Stage handlers recover external-call failures themselves
// and fold them into state deltas; only these classes cross package borders.
var (
	// ErrInvalidInput rejects empty, oversized or injection-laden input
	// before any downstream stage runs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInferenceFailure marks a timed-out or malformed model call. It is
	// always recovered locally and never surfaced raw to the user.
	ErrInferenceFailure = errors.New("inference failure")

	// ErrPersistenceFailure marks a best-effort write that did not land.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrSafetyViolation marks content blocked by policy.
	ErrSafetyViolation = errors.New("safety violation")

	// ErrExecutionLimitExceeded marks a routing cycle or graph
	// misconfiguration. Fatal for the request.
	ErrExecutionLimitExceeded = errors.New("execution limit exceeded")

	// ErrRateLimited rejects a request before any state is created.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// InvalidInputError carries the user-facing reason for an input rejection.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// RateLimitError carries the retry-after hint.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
