package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/index"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/prompts"
	"github.com/mltutor/mltutor/internal/quiz"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func seedChunks(t *testing.T, texts ...string) *index.MemoryIndex {
	t.Helper()
	idx := index.NewMemoryIndex()
	chunks := make([]ingest.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = ingest.Chunk{
			ID:         ingest.ChunkID("m", i, text),
			MaterialID: "m",
			Text:       text,
		}
	}
	if err := idx.Add(context.Background(), chunks); err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	return idx
}

func choiceJSON(n int) string {
	return fmt.Sprintf(`{"stem": "Choice question number %d?",
		"options": ["right answer %d", "wrong one", "wrong two", "wrong three"],
		"correct_answer": "right answer %d",
		"explanation": "because"}`, n, n, n)
}

func booleanJSON(n int) string {
	return fmt.Sprintf(`{"stem": "Boolean statement number %d.", "correct_answer": "True", "explanation": "because"}`, n)
}

func newGenerator(llm quiz.Completer, idx index.Index) (*quiz.Generator, *quiz.MemoryQuestionStore, *quiz.MemoryRecency) {
	store := quiz.NewMemoryQuestionStore()
	recency := quiz.NewMemoryRecency()
	gen := quiz.NewGenerator(llm, idx, recency, store, mustPack(), discard())
	return gen, store, recency
}

func mustPack() *prompts.Pack {
	p, err := prompts.Default()
	if err != nil {
		panic(err)
	}
	return p
}

func TestGenerator_FullBatch(t *testing.T) {
	idx := seedChunks(t, "chunk about gradients", "chunk about trees", "chunk about attention")
	llm := ai.NewScriptedProvider(choiceJSON(1), choiceJSON(2), booleanJSON(3))
	gen, store, _ := newGenerator(llm, idx)

	questions, err := gen.Generate(context.Background(), quiz.Request{
		MaterialID: "m",
		Counts:     quiz.Counts{Choice: 2, Boolean: 1},
		Difficulty: quiz.DifficultyMedium,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}

	for i, q := range questions {
		if q.ID == "" {
			t.Errorf("question %d has no id", i)
		}
		if q.MaterialID != "m" {
			t.Errorf("question %d material = %q", i, q.MaterialID)
		}
		if q.SourceSnippet == "" {
			t.Errorf("question %d has no source snippet", i)
		}
		// Every generated question must be retrievable for review.
		if _, err := store.Get(context.Background(), q.ID); err != nil {
			t.Errorf("question %d not persisted: %v", i, err)
		}
	}
	if questions[2].Type != quiz.TypeBoolean {
		t.Errorf("question 3 type = %q, want boolean", questions[2].Type)
	}
	if questions[2].Options[0] != quiz.LabelTrue || questions[2].Options[1] != quiz.LabelFalse {
		t.Errorf("boolean options = %v, want canonical labels", questions[2].Options)
	}
}

func TestGenerator_DegradesToFewerQuestions(t *testing.T) {
	idx := seedChunks(t, "alpha chunk", "beta chunk", "gamma chunk", "delta chunk")
	// Slots 3 and 4 return garbage for all three attempts each; the
	// batch degrades from 7 to 5.
	responses := []string{
		choiceJSON(1),
		choiceJSON(2),
		"not json", "still not json", "nope",
		"not json", "still not json", "nope",
		choiceJSON(5),
		booleanJSON(6),
		booleanJSON(7),
	}
	llm := ai.NewScriptedProvider(responses...)
	gen, _, _ := newGenerator(llm, idx)

	questions, err := gen.Generate(context.Background(), quiz.Request{
		MaterialID: "m",
		Counts:     quiz.Counts{Choice: 5, Boolean: 2},
		Difficulty: quiz.DifficultyEasy,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v, short batches must not error", err)
	}
	if len(questions) != 5 {
		t.Fatalf("got %d questions, want 5 after two failed slots", len(questions))
	}
	if llm.Calls() != len(responses) {
		t.Errorf("LLM called %d times, want %d (3 attempts per failed slot)", llm.Calls(), len(responses))
	}
}

func TestGenerator_EmptyBatchErrors(t *testing.T) {
	idx := seedChunks(t, "only chunk")
	llm := ai.NewMockProvider("definitely not json")
	gen, _, _ := newGenerator(llm, idx)

	_, err := gen.Generate(context.Background(), quiz.Request{
		MaterialID: "m",
		Counts:     quiz.Counts{Choice: 1},
	})
	if !errors.Is(err, quiz.ErrNoQuestionsGenerated) {
		t.Fatalf("Generate() error = %v, want ErrNoQuestionsGenerated", err)
	}
}

func TestGenerator_UnindexedMaterial(t *testing.T) {
	gen, _, _ := newGenerator(ai.NewMockProvider(choiceJSON(1)), index.NewMemoryIndex())

	_, err := gen.Generate(context.Background(), quiz.Request{
		MaterialID: "ghost",
		Counts:     quiz.Counts{Choice: 1},
	})
	if !errors.Is(err, quiz.ErrMaterialNotIndexed) {
		t.Fatalf("Generate() error = %v, want ErrMaterialNotIndexed", err)
	}
}

func TestGenerator_DeduplicatesStems(t *testing.T) {
	idx := seedChunks(t, "alpha", "beta", "gamma")
	// The model repeats itself; the duplicate burns the slot's
	// retries and the batch degrades to one question.
	llm := ai.NewMockProvider(choiceJSON(1))
	gen, _, _ := newGenerator(llm, idx)

	questions, err := gen.Generate(context.Background(), quiz.Request{
		MaterialID: "m",
		Counts:     quiz.Counts{Choice: 2},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want 1 after dedupe", len(questions))
	}
}

func TestGenerator_BiasesAgainstRecentChunks(t *testing.T) {
	ctx := context.Background()
	idx := seedChunks(t, "recently used text", "fresh unused text")
	llm := ai.NewMockProvider(choiceJSON(1))
	gen, _, recency := newGenerator(llm, idx)

	if err := recency.MarkUsed(ctx, "m", []string{ingest.ChunkID("m", 0, "recently used text")}); err != nil {
		t.Fatal(err)
	}

	if _, err := gen.Generate(ctx, quiz.Request{
		MaterialID: "m",
		Counts:     quiz.Counts{Choice: 1},
	}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	req := llm.LastRequest()
	if req == nil {
		t.Fatal("no LLM request recorded")
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(prompt, "fresh unused text") {
		t.Errorf("prompt did not prefer the unused chunk:\n%s", prompt)
	}
}
