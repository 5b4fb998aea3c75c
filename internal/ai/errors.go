package ai

import (
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrUnavailable indicates the provider is down, unreachable, or returned 5xx.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm provider unavailable: %v", e.Err)
	}
	return "llm provider unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the model returned content that could not be
// used: empty completion, no choices, or output that failed schema validation
// downstream.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid llm response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }
