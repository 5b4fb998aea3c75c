// Package ai provides a provider-agnostic LLM gateway with task-based routing.
package ai

import "context"

// TaskType defines the kind of LLM task for routing and logging purposes.
type TaskType int

const (
	TaskChat TaskType = iota
	TaskQuizGeneration
	TaskQueryExpansion
	TaskDiagnostic
)

func (t TaskType) String() string {
	switch t {
	case TaskChat:
		return "chat"
	case TaskQuizGeneration:
		return "quiz_generation"
	case TaskQueryExpansion:
		return "query_expansion"
	case TaskDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an LLM completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an LLM completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// StreamChunk represents a streaming response chunk.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all LLM providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
