package history_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/history"
	"github.com/mltutor/mltutor/internal/prompts"
)

func diagPack(t *testing.T) *prompts.Pack {
	t.Helper()
	p, err := prompts.Default()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func storeWithMiss(t *testing.T) *history.MemoryStore {
	t.Helper()
	store := history.NewMemoryStore()
	err := store.Append(context.Background(), attempt("a1", "m", 50,
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		history.AnsweredQuestion{
			QuestionID:    "q1",
			Stem:          "What does the kernel trick enable?",
			CorrectAnswer: "implicit high-dimensional features",
			UserAnswer:    "faster training",
		}))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestDiagnostician_SummarizesWeaknesses(t *testing.T) {
	llm := ai.NewMockProvider("Focus on kernel methods: revisit the kernel trick section.")
	d := history.NewDiagnostician(llm, storeWithMiss(t), diagPack(t), slog.New(slog.DiscardHandler))

	text, err := d.Diagnose(context.Background(), "m")
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if !strings.Contains(text, "kernel") {
		t.Errorf("diagnosis = %q", text)
	}

	req := llm.LastRequest()
	if req == nil {
		t.Fatal("no LLM request recorded")
	}
	if !strings.Contains(req.Messages[0].Content, "kernel trick") {
		t.Error("prompt does not include the missed question")
	}
}

func TestDiagnostician_CleanHistorySkipsLLM(t *testing.T) {
	llm := ai.NewMockProvider("should never be called")
	d := history.NewDiagnostician(llm, history.NewMemoryStore(), diagPack(t), slog.New(slog.DiscardHandler))

	text, err := d.Diagnose(context.Background(), "m")
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if text == "" {
		t.Error("expected the canned perfect-score reply")
	}
	if llm.Calls() != 0 {
		t.Errorf("LLM called %d times for a clean history", llm.Calls())
	}
}

func TestDiagnostician_LLMFailure(t *testing.T) {
	llm := &ai.MockProvider{Err: &ai.ErrUnavailable{Err: errors.New("model offline")}}
	store := storeWithMiss(t)
	d := history.NewDiagnostician(llm, store, diagPack(t), slog.New(slog.DiscardHandler))

	_, err := d.Diagnose(context.Background(), "m")
	if !errors.Is(err, history.ErrDiagnosticUnavailable) {
		t.Fatalf("Diagnose() error = %v, want ErrDiagnosticUnavailable", err)
	}

	// The failure is isolated: the attempt log is untouched and
	// still readable.
	attempts, err := store.List(context.Background(), "m", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Errorf("attempt log changed: %d records", len(attempts))
	}
}
