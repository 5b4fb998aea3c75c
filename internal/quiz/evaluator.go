package quiz

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mltutor/mltutor/internal/history"
	"github.com/mltutor/mltutor/internal/ingest"
)

// Score a chapter quiz must reach before the next chapter is
// suggested.
const advanceThreshold = 60.0

// AnsweredQuestion is a generated question plus the student's answer.
type AnsweredQuestion struct {
	Question
	UserAnswer string `json:"user_answer"`
}

// Submission is one completed quiz handed in for grading.
type Submission struct {
	MaterialID string             `json:"material_id"`
	ChapterID  string             `json:"chapter_id,omitempty"`
	Difficulty string             `json:"difficulty"`
	Mode       string             `json:"mode"`
	Questions  []AnsweredQuestion `json:"questions"`
}

// Result is the graded outcome returned to the student. Warning is set
// when the score could not be recorded in the attempt history.
type Result struct {
	ScoreRaw        int     `json:"score_raw"`
	ScoreTotal      int     `json:"score_total"`
	ScorePercentage float64 `json:"score_percentage"`
	NextChapter     string  `json:"next_chapter,omitempty"`
	Warning         string  `json:"warning,omitempty"`
}

// ChapterLister exposes the detected chapters of a material.
type ChapterLister interface {
	Chapters(materialID string) []ingest.Chapter
}

// Evaluator grades submissions. Grading is pure; recording the attempt
// is best-effort, so a history outage never loses a score.
type Evaluator struct {
	store    history.Store
	chapters ChapterLister
	log      *slog.Logger
}

func NewEvaluator(store history.Store, chapters ChapterLister, log *slog.Logger) *Evaluator {
	return &Evaluator{store: store, chapters: chapters, log: log}
}

// Evaluate grades every answer, records the attempt, and reports the
// score. Blank answers are always wrong. An empty submission grades to
// zero without touching the history.
func (e *Evaluator) Evaluate(ctx context.Context, sub Submission) (Result, error) {
	total := len(sub.Questions)
	if total == 0 {
		return Result{}, nil
	}

	titles := e.chapterTitles(sub.MaterialID)
	answers := make([]history.AnsweredQuestion, 0, total)
	raw := 0
	for _, aq := range sub.Questions {
		correct := AnswersEqual(aq.UserAnswer, aq.CorrectAnswer)
		if correct {
			raw++
		}
		answers = append(answers, history.AnsweredQuestion{
			QuestionID:    aq.ID,
			Stem:          aq.Stem,
			QType:         string(aq.Type),
			UserAnswer:    aq.UserAnswer,
			CorrectAnswer: aq.CorrectAnswer,
			Correct:       correct,
			ChapterTitle:  titles[aq.ChapterID],
		})
	}

	result := Result{
		ScoreRaw:        raw,
		ScoreTotal:      total,
		ScorePercentage: math.Round(float64(raw)/float64(total)*10000) / 100,
	}
	result.NextChapter = e.nextChapter(sub, result.ScorePercentage)

	mode := sub.Mode
	if mode == "" {
		mode = "standard"
	}
	rec := history.AttemptRecord{
		ID:              uuid.NewString(),
		MaterialID:      sub.MaterialID,
		Mode:            mode,
		Difficulty:      sub.Difficulty,
		SubmittedAt:     time.Now(),
		ScoreRaw:        result.ScoreRaw,
		ScoreTotal:      result.ScoreTotal,
		ScorePercentage: result.ScorePercentage,
		Answers:         answers,
	}
	if err := e.store.Append(ctx, rec); err != nil {
		// The student still gets their score.
		e.log.Error("recording quiz attempt failed",
			slog.String("material_id", sub.MaterialID),
			slog.Any("error", err))
		result.Warning = "score could not be saved to your learning history"
	}
	return result, nil
}

// nextChapter suggests where to go after passing a chapter-scoped
// quiz.
func (e *Evaluator) nextChapter(sub Submission, pct float64) string {
	if sub.ChapterID == "" || pct < advanceThreshold {
		return ""
	}
	chapters := e.chapters.Chapters(sub.MaterialID)
	for i, ch := range chapters {
		if ch.ID == sub.ChapterID && i+1 < len(chapters) {
			return chapters[i+1].Title
		}
	}
	return ""
}

func (e *Evaluator) chapterTitles(materialID string) map[string]string {
	titles := make(map[string]string)
	for _, ch := range e.chapters.Chapters(materialID) {
		titles[ch.ID] = ch.Title
	}
	return titles
}
