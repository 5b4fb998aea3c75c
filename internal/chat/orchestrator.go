// Package chat assembles retrieval context, conversation history and
// few-shot exemplars into tutoring answers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/index"
	"github.com/mltutor/mltutor/internal/material"
	"github.com/mltutor/mltutor/internal/prompts"
	"github.com/mltutor/mltutor/internal/retrieval"
)

// ErrUpstreamUnavailable means the LLM itself failed. Retrieval
// coming back empty is not a failure.
var ErrUpstreamUnavailable = errors.New("chat: upstream llm unavailable")

// Turns of history kept in the prompt.
const maxHistoryTurns = 3

// Settings tunes one chat exchange.
type Settings struct {
	K           int     `json:"k"`
	Temperature float64 `json:"temperature"`
	Expand      bool    `json:"expand"`
	FewShot     bool    `json:"few_shot"`
	MaterialID  string  `json:"material_id,omitempty"`
}

// DefaultSettings are applied where the request leaves fields zero.
func DefaultSettings() Settings {
	return Settings{K: 4, Temperature: 0.3, Expand: true, FewShot: true}
}

// Answer is the orchestrator's reply.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Streamer pushes incremental answer text to the caller.
type Streamer interface {
	Send(chunk string) error
}

// Orchestrator wires the retriever, the prompt pack and the LLM
// gateway into the question answering flow.
type Orchestrator struct {
	llm       llmGateway
	retriever *retrieval.Retriever
	materials *material.Registry
	pack      *prompts.Pack
	log       *slog.Logger
}

// llmGateway is the slice of the gateway the orchestrator needs, for
// both one-shot and streaming completions.
type llmGateway interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
	StreamComplete(ctx context.Context, req ai.CompletionRequest) (<-chan ai.StreamChunk, error)
}

func New(llm llmGateway, retriever *retrieval.Retriever, materials *material.Registry, pack *prompts.Pack, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		llm:       llm,
		retriever: retriever,
		materials: materials,
		pack:      pack,
		log:       log,
	}
}

// Ask answers one question. Missing context is handled by the prompt
// template, not by refusing the call.
func (o *Orchestrator) Ask(ctx context.Context, question string, history []ai.Message, settings Settings) (Answer, error) {
	req, sources, err := o.buildRequest(ctx, question, history, settings)
	if err != nil {
		return Answer{}, err
	}

	resp, err := o.llm.Complete(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return Answer{Text: strings.TrimSpace(resp.Content), Sources: sources}, nil
}

// Stream answers one question, pushing text to the streamer as it
// arrives. It returns the final assembled answer.
func (o *Orchestrator) Stream(ctx context.Context, question string, history []ai.Message, settings Settings, out Streamer) (Answer, error) {
	req, sources, err := o.buildRequest(ctx, question, history, settings)
	if err != nil {
		return Answer{}, err
	}

	ch, err := o.llm.StreamComplete(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	var full strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			return Answer{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, chunk.Error)
		}
		if chunk.Content != "" {
			full.WriteString(chunk.Content)
			if err := out.Send(chunk.Content); err != nil {
				return Answer{}, fmt.Errorf("pushing stream chunk: %w", err)
			}
		}
	}
	return Answer{Text: strings.TrimSpace(full.String()), Sources: sources}, nil
}

func (o *Orchestrator) buildRequest(ctx context.Context, question string, history []ai.Message, settings Settings) (ai.CompletionRequest, []string, error) {
	hits, err := o.retriever.Retrieve(ctx, question, retrieval.Options{
		K:      settings.K,
		Filter: index.Filter{MaterialID: settings.MaterialID},
		Expand: settings.Expand,
	})
	if err != nil {
		return ai.CompletionRequest{}, nil, fmt.Errorf("retrieving context: %w", err)
	}

	contextBlock, sources := o.renderContext(hits)
	system := prompts.Render(o.pack.ChatSystem, map[string]string{"context": contextBlock})

	messages := make([]ai.Message, 0, 2+len(o.pack.FewShot)*2+len(history))
	messages = append(messages, ai.Message{Role: "system", Content: system})
	if settings.FewShot {
		for _, ex := range o.pack.FewShot {
			messages = append(messages,
				ai.Message{Role: "user", Content: ex.Question},
				ai.Message{Role: "assistant", Content: ex.Answer})
		}
	}
	messages = append(messages, boundHistory(history)...)
	messages = append(messages, ai.Message{Role: "user", Content: question})

	return ai.CompletionRequest{
		Task:        ai.TaskChat,
		Messages:    messages,
		Temperature: settings.Temperature,
		MaxTokens:   2048,
	}, sources, nil
}

// renderContext tags each excerpt with its source label and collects
// the distinct labels in first-reference order.
func (o *Orchestrator) renderContext(hits []index.Hit) (string, []string) {
	if len(hits) == 0 {
		return strings.TrimSpace(o.pack.NoContextNote), []string{}
	}

	var b strings.Builder
	seen := make(map[string]bool)
	sources := make([]string, 0, len(hits))
	for i, h := range hits {
		label := o.sourceLabel(h)
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, label, h.Chunk.Text)
		if !seen[label] {
			seen[label] = true
			sources = append(sources, label)
		}
	}
	return strings.TrimSpace(b.String()), sources
}

func (o *Orchestrator) sourceLabel(h index.Hit) string {
	name := h.Chunk.MaterialID
	if m, err := o.materials.Get(h.Chunk.MaterialID); err == nil && m.Title != "" {
		name = m.Title
	}
	if h.Chunk.Pages.End > h.Chunk.Pages.Start {
		return fmt.Sprintf("%s, p.%d-%d", name, h.Chunk.Pages.Start, h.Chunk.Pages.End)
	}
	return fmt.Sprintf("%s, p.%d", name, h.Chunk.Pages.Start)
}

func boundHistory(history []ai.Message) []ai.Message {
	max := maxHistoryTurns * 2
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
