package history_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mltutor/mltutor/internal/history"
)

func attempt(id, materialID string, pct float64, at time.Time, answers ...history.AnsweredQuestion) history.AttemptRecord {
	return history.AttemptRecord{
		ID:              id,
		MaterialID:      materialID,
		Mode:            "standard",
		SubmittedAt:     at,
		ScoreRaw:        int(pct) / 10,
		ScoreTotal:      10,
		ScorePercentage: pct,
		Answers:         answers,
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := history.NewMemoryStore()
	ctx := context.Background()
	const n = 25

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := attempt(fmt.Sprintf("a%d", i), "m", 70, time.Now())
			if err := store.Append(ctx, rec); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	attempts, err := store.List(ctx, "m", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(attempts) != n {
		t.Fatalf("got %d attempts after %d concurrent appends", len(attempts), n)
	}
}

func TestMemoryStore_WrongViewTracksLatestAnswer(t *testing.T) {
	store := history.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	miss := history.AnsweredQuestion{
		QuestionID:    "q1",
		Stem:          "What does momentum add to SGD?",
		CorrectAnswer: "velocity term",
		UserAnswer:    "noise",
		Correct:       false,
	}
	if err := store.Append(ctx, attempt("a1", "m", 0, base, miss)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, attempt("a2", "m", 0, base.Add(time.Hour), miss)); err != nil {
		t.Fatal(err)
	}

	wrong, err := store.WrongQuestions(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 1 {
		t.Fatalf("got %d wrong entries, want 1 (deduped by question)", len(wrong))
	}
	if wrong[0].Misses != 2 {
		t.Errorf("misses = %d, want 2", wrong[0].Misses)
	}

	// A later correct answer clears the entry.
	fixed := miss
	fixed.UserAnswer = "velocity term"
	fixed.Correct = true
	if err := store.Append(ctx, attempt("a3", "m", 100, base.Add(2*time.Hour), fixed)); err != nil {
		t.Fatal(err)
	}
	wrong, err = store.WrongQuestions(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 0 {
		t.Errorf("wrong view still holds %d entries after a correct answer", len(wrong))
	}
}

func TestMemoryStore_ListScopesAndLimits(t *testing.T) {
	store := history.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, attempt(fmt.Sprintf("a%d", i), "m1", 50, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Append(ctx, attempt("b1", "m2", 90, base)); err != nil {
		t.Fatal(err)
	}

	attempts, err := store.List(ctx, "m1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("List(m1, 2) returned %d attempts", len(attempts))
	}
	if attempts[0].ID != "a4" {
		t.Errorf("most recent attempt = %s, want a4", attempts[0].ID)
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Errorf("List with empty material returned %d attempts, want all 6", len(all))
	}
}
