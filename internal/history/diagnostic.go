package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/prompts"
)

// ErrDiagnosticUnavailable means the LLM could not produce a
// diagnosis. Scores and the attempt log are unaffected.
var ErrDiagnosticUnavailable = errors.New("history: diagnostic unavailable")

// Completer is the slice of the LLM gateway the diagnostician needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Diagnostician turns the wrong-question view into a short narrative
// study recommendation.
type Diagnostician struct {
	llm   Completer
	store Store
	pack  *prompts.Pack
	log   *slog.Logger
}

func NewDiagnostician(llm Completer, store Store, pack *prompts.Pack, log *slog.Logger) *Diagnostician {
	return &Diagnostician{llm: llm, store: store, pack: pack, log: log}
}

// Diagnose summarizes what the student should work on. With nothing
// currently wrong it returns a canned congratulation without an LLM
// call.
func (d *Diagnostician) Diagnose(ctx context.Context, materialID string) (string, error) {
	wrong, err := d.store.WrongQuestions(ctx, materialID)
	if err != nil {
		return "", err
	}
	if len(wrong) == 0 {
		return strings.TrimSpace(d.pack.PerfectScore), nil
	}

	var b strings.Builder
	for i, w := range wrong {
		fmt.Fprintf(&b, "%d. Q: %s\n   Correct answer: %s\n   Student answered: %s\n",
			i+1, w.Stem, w.CorrectAnswer, w.LastAnswer)
		if w.ChapterTitle != "" {
			fmt.Fprintf(&b, "   Chapter: %s\n", w.ChapterTitle)
		}
	}

	resp, err := d.llm.Complete(ctx, ai.CompletionRequest{
		Task: ai.TaskDiagnostic,
		Messages: []ai.Message{
			{Role: "user", Content: prompts.Render(d.pack.Diagnostic, map[string]string{"wrong": b.String()})},
		},
		MaxTokens:   512,
		Temperature: 0.5,
	})
	if err != nil {
		d.log.Warn("diagnostic generation failed",
			slog.String("material_id", materialID),
			slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", ErrDiagnosticUnavailable, err)
	}
	return strings.TrimSpace(resp.Content), nil
}
