package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/mltutor/mltutor/internal/history"
)

func seededStore(t *testing.T, percentages ...float64) *history.MemoryStore {
	t.Helper()
	store := history.NewMemoryStore()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, pct := range percentages {
		rec := attempt(
			"a"+string(rune('0'+i)), "m", pct,
			base.Add(time.Duration(i)*time.Hour))
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestAnalytics_Overview(t *testing.T) {
	a := history.NewAnalytics(seededStore(t, 50, 80, 65))

	ov, err := a.Overview(context.Background(), "m")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", ov.Attempts)
	}
	if ov.AverageScore != 65.0 {
		t.Errorf("average = %v, want 65.0", ov.AverageScore)
	}
	if ov.BestScore != 80.0 {
		t.Errorf("best = %v, want 80.0", ov.BestScore)
	}
	if ov.RecentScore != 65.0 {
		t.Errorf("recent score = %v, want the chronologically last attempt's 65.0", ov.RecentScore)
	}
	if len(ov.RecentScores) != 3 || ov.RecentScores[0] != 65 {
		t.Errorf("recent scores = %v, want most recent first", ov.RecentScores)
	}
}

func TestAnalytics_OverviewEmpty(t *testing.T) {
	a := history.NewAnalytics(history.NewMemoryStore())

	ov, err := a.Overview(context.Background(), "m")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.Attempts != 0 || ov.AverageScore != 0 || ov.BestScore != 0 {
		t.Errorf("empty overview = %+v, want zeroes", ov)
	}
	if ov.RecentScores == nil {
		t.Error("recent scores should be an empty slice, not nil")
	}
}

func TestAnalytics_TimelineAscending(t *testing.T) {
	a := history.NewAnalytics(seededStore(t, 80, 90, 100))

	points, err := a.Timeline(context.Background(), "m", 10)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	want := []float64{80, 90, 100}
	for i, p := range points {
		if p.ScorePercentage != want[i] {
			t.Errorf("point %d = %v, want %v (chronological order)", i, p.ScorePercentage, want[i])
		}
	}
	for i := 1; i < len(points); i++ {
		if points[i].SubmittedAt.Before(points[i-1].SubmittedAt) {
			t.Errorf("timeline not ascending at %d", i)
		}
	}
}

func TestAnalytics_FocusTopics(t *testing.T) {
	store := history.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	misses := []history.AnsweredQuestion{
		{QuestionID: "q1", Stem: "How does regularization affect weights?", ChapterTitle: "Regularization"},
		{QuestionID: "q2", Stem: "Why does regularization reduce overfitting?", ChapterTitle: "Regularization"},
		{QuestionID: "q3", Stem: "Define the perceptron update rule."},
	}
	if err := store.Append(ctx, attempt("a1", "m", 0, base, misses...)); err != nil {
		t.Fatal(err)
	}

	topics, err := history.NewAnalytics(store).FocusTopics(ctx, "m")
	if err != nil {
		t.Fatalf("FocusTopics() error = %v", err)
	}
	if len(topics) == 0 || len(topics) > 4 {
		t.Fatalf("got %d topics, want between 1 and 4", len(topics))
	}
	if topics[0] != "Regularization" {
		t.Errorf("top topic = %q, want the repeatedly missed chapter", topics[0])
	}
}

func TestAnalytics_FocusTopicsEmpty(t *testing.T) {
	topics, err := history.NewAnalytics(history.NewMemoryStore()).FocusTopics(context.Background(), "m")
	if err != nil {
		t.Fatalf("FocusTopics() error = %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("got %d topics from an empty history", len(topics))
	}
}
