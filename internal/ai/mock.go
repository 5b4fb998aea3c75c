package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for LLM providers. When Responses is set it
// returns each entry in order (sticking on the last one); otherwise it
// returns Response for every call.
type MockProvider struct {
	Response  string
	Responses []string
	Err       error
	// Errs, when non-nil, supplies a per-call error aligned with Responses.
	Errs []error

	mu       sync.Mutex
	calls    int
	requests []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

// NewScriptedProvider creates a MockProvider that plays back responses in order.
func NewScriptedProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++
	m.requests = append(m.requests, req)

	if m.Errs != nil && call < len(m.Errs) && m.Errs[call] != nil {
		return CompletionResponse{}, m.Errs[call]
	}
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}

	content := m.Response
	if len(m.Responses) > 0 {
		idx := min(call, len(m.Responses)-1)
		content = m.Responses[idx]
	}

	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

func (m *MockProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Content: resp.Content, Done: true}
	close(ch)
	return ch, nil
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// Calls returns how many completions have been requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or nil if none were made.
func (m *MockProvider) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}
