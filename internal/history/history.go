// Package history is the system of record for quiz attempts. It owns
// the append-only attempt log and a denormalized view of questions the
// student currently has wrong.
package history

import (
	"context"
	"time"
)

// AnsweredQuestion is one graded answer inside an attempt.
type AnsweredQuestion struct {
	QuestionID    string `json:"question_id"`
	Stem          string `json:"stem"`
	QType         string `json:"qtype"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
	ChapterTitle  string `json:"chapter_title,omitempty"`
}

// AttemptRecord is one submitted quiz, stored append-only.
type AttemptRecord struct {
	ID              string             `json:"id"`
	MaterialID      string             `json:"material_id"`
	Mode            string             `json:"mode"`
	Difficulty      string             `json:"difficulty"`
	SubmittedAt     time.Time          `json:"submitted_at"`
	ScoreRaw        int                `json:"score_raw"`
	ScoreTotal      int                `json:"score_total"`
	ScorePercentage float64            `json:"score_percentage"`
	Answers         []AnsweredQuestion `json:"answers"`
}

// WrongQuestion is one entry in the wrong-question view: the latest
// answer to this question was incorrect.
type WrongQuestion struct {
	QuestionID    string    `json:"question_id"`
	MaterialID    string    `json:"material_id"`
	Stem          string    `json:"stem"`
	CorrectAnswer string    `json:"correct_answer"`
	LastAnswer    string    `json:"last_answer"`
	ChapterTitle  string    `json:"chapter_title,omitempty"`
	Misses        int       `json:"misses"`
	LastMissedAt  time.Time `json:"last_missed_at"`
}

// Store persists attempts. Append must atomically update the
// wrong-question view: a correct answer clears the question, an
// incorrect one records or bumps it.
type Store interface {
	Append(ctx context.Context, rec AttemptRecord) error
	// List returns attempts for the material (all materials when
	// empty), most recent first, up to limit (0 means all).
	List(ctx context.Context, materialID string, limit int) ([]AttemptRecord, error)
	WrongQuestions(ctx context.Context, materialID string) ([]WrongQuestion, error)
}
