package ai

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds the retry loop around a provider call.
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	InitialWait time.Duration // wait before the second attempt
	MaxWait     time.Duration // cap on the backoff schedule
	Multiplier  float64       // backoff growth factor
	Timeout     time.Duration // per-attempt deadline; 0 means no extra deadline
}

// DefaultRetryConfig is a conservative policy for interactive requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     8 * time.Second,
		Multiplier:  2.0,
		Timeout:     60 * time.Second,
	}
}

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter. Each attempt runs under its own deadline.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with bounded retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error

	for attempt := range r.config.MaxAttempts {
		resp, err := r.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return CompletionResponse{}, err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(r.backoff(attempt, err)):
		}
	}

	return CompletionResponse{}, lastErr
}

func (r *RetryProvider) attempt(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}
	return r.inner.Complete(ctx, req)
}

func (r *RetryProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	// Streams are not replayed; only the initial connection is retried via Complete paths.
	return r.inner.StreamComplete(ctx, req)
}

func (r *RetryProvider) Models() []ModelInfo { return r.inner.Models() }

func (r *RetryProvider) HealthCheck(ctx context.Context) error { return r.inner.HealthCheck(ctx) }

// shouldRetry determines if an error is transient.
func shouldRetry(err error) bool {
	// Typed provider errors decide first. A per-attempt timeout surfaces
	// as an ErrUnavailable wrapping DeadlineExceeded and stays retryable;
	// the caller's own cancellation aborts the loop in the backoff select.
	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return true
	}
	var unavail *ErrUnavailable
	if errors.As(err, &unavail) {
		return true
	}

	// Malformed output is a model problem, not a transport problem; the
	// calling component applies its own degradation policy.
	var invalid *ErrInvalidResponse
	if errors.As(err, &invalid) {
		return false
	}

	// Bare cancellation or deadline comes from the caller's context.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Other errors (network, etc.) are treated as transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	// Respect Retry-After for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
