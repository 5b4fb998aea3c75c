package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router selects the best provider based on availability, walking a
// registration-ordered fallback chain.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new LLM router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// Complete routes a request to the first available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var lastErr error
	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			lastErr = err
			slog.Warn("llm provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			continue
		}

		slog.Debug("llm request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	if lastErr != nil {
		return CompletionResponse{}, &ErrUnavailable{Err: fmt.Errorf("all llm providers failed: %w", lastErr)}
	}
	return CompletionResponse{}, &ErrUnavailable{Err: fmt.Errorf("no llm providers registered")}
}

// StreamComplete routes a streaming request to the first available provider.
func (r *Router) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var lastErr error
	for _, name := range r.fallback {
		ch, err := r.providers[name].StreamComplete(ctx, req)
		if err != nil {
			lastErr = err
			slog.Warn("llm provider stream failed, trying next", "provider", name, "error", err)
			continue
		}
		return ch, nil
	}

	if lastErr != nil {
		return nil, &ErrUnavailable{Err: fmt.Errorf("all llm providers failed: %w", lastErr)}
	}
	return nil, &ErrUnavailable{Err: fmt.Errorf("no llm providers registered")}
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
