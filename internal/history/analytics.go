package history

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	maxFocusTopics  = 4
	recentScoreSpan = 5
)

// Overview summarizes a student's performance on one material, or all
// materials when the id is empty.
type Overview struct {
	Attempts     int       `json:"attempts"`
	AverageScore float64   `json:"average_score"`
	BestScore    float64   `json:"best_score"`
	RecentScore  float64   `json:"recent_score"`
	RecentScores []float64 `json:"recent_scores"`
}

// TimelinePoint is one attempt on the progress chart.
type TimelinePoint struct {
	SubmittedAt     time.Time `json:"submitted_at"`
	ScorePercentage float64   `json:"score_percentage"`
}

// Analytics derives read-only reports from the attempt log. It holds
// no state of its own.
type Analytics struct {
	store Store
}

func NewAnalytics(store Store) *Analytics {
	return &Analytics{store: store}
}

func (a *Analytics) Overview(ctx context.Context, materialID string) (Overview, error) {
	attempts, err := a.store.List(ctx, materialID, 0)
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{Attempts: len(attempts), RecentScores: []float64{}}
	if len(attempts) == 0 {
		return ov, nil
	}

	var sum float64
	for _, rec := range attempts {
		sum += rec.ScorePercentage
		if rec.ScorePercentage > ov.BestScore {
			ov.BestScore = rec.ScorePercentage
		}
	}
	ov.AverageScore = round2(sum / float64(len(attempts)))

	// List is most recent first.
	ov.RecentScore = attempts[0].ScorePercentage
	for i := 0; i < len(attempts) && i < recentScoreSpan; i++ {
		ov.RecentScores = append(ov.RecentScores, attempts[i].ScorePercentage)
	}
	return ov, nil
}

// Timeline returns the last n attempts in chronological order, ready
// for plotting.
func (a *Analytics) Timeline(ctx context.Context, materialID string, n int) ([]TimelinePoint, error) {
	attempts, err := a.store.List(ctx, materialID, n)
	if err != nil {
		return nil, err
	}
	points := make([]TimelinePoint, len(attempts))
	for i, rec := range attempts {
		// Reverse from most-recent-first to ascending.
		points[len(attempts)-1-i] = TimelinePoint{
			SubmittedAt:     rec.SubmittedAt,
			ScorePercentage: rec.ScorePercentage,
		}
	}
	return points, nil
}

// FocusTopics names the areas the student keeps getting wrong, ranked
// by how often their keywords appear across missed questions.
func (a *Analytics) FocusTopics(ctx context.Context, materialID string) ([]string, error) {
	wrong, err := a.store.WrongQuestions(ctx, materialID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	display := make(map[string]string)
	for _, w := range wrong {
		if title := strings.TrimSpace(w.ChapterTitle); title != "" {
			key := strings.ToLower(title)
			counts[key] += 2 // chapter titles outrank free keywords
			display[key] = title
		}
		for _, kw := range keywords(w.Stem) {
			key := strings.ToLower(kw)
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = kw
			}
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > maxFocusTopics {
		keys = keys[:maxFocusTopics]
	}

	topics := make([]string, len(keys))
	for i, k := range keys {
		topics[i] = display[k]
	}
	return topics, nil
}

var stopwords = map[string]bool{
	"about": true, "after": true, "check": true, "could": true,
	"does": true, "following": true, "from": true, "have": true,
	"that": true, "their": true, "there": true, "these": true,
	"this": true, "true": true, "false": true, "what": true,
	"when": true, "where": true, "which": true, "statement": true,
	"with": true, "would": true, "using": true, "used": true,
}

// keywords pulls candidate topic words out of a question stem.
func keywords(stem string) []string {
	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	var out []string
	for _, f := range fields {
		if len(f) < 4 || stopwords[strings.ToLower(f)] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
