package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mltutor/mltutor/internal/platform/database"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS quiz_attempts (
	id               TEXT PRIMARY KEY,
	material_id      TEXT NOT NULL,
	mode             TEXT NOT NULL DEFAULT 'standard',
	difficulty       TEXT NOT NULL DEFAULT '',
	submitted_at     TIMESTAMPTZ NOT NULL,
	score_raw        INT NOT NULL,
	score_total      INT NOT NULL,
	score_percentage DOUBLE PRECISION NOT NULL,
	answers          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS quiz_attempts_material_idx ON quiz_attempts (material_id, submitted_at DESC);

CREATE TABLE IF NOT EXISTS wrong_questions (
	question_id    TEXT PRIMARY KEY,
	material_id    TEXT NOT NULL,
	stem           TEXT NOT NULL,
	correct_answer TEXT NOT NULL,
	last_answer    TEXT NOT NULL DEFAULT '',
	chapter_title  TEXT NOT NULL DEFAULT '',
	misses         INT NOT NULL DEFAULT 0,
	last_missed_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore persists attempts and the wrong-question view. Append
// runs in one transaction so the view never drifts from the log.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	if _, err := db.Pool.Exec(ctx, historySchema); err != nil {
		return nil, fmt.Errorf("ensuring history schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec AttemptRecord) error {
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("encoding answers: %w", err)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO quiz_attempts
			(id, material_id, mode, difficulty, submitted_at,
			 score_raw, score_total, score_percentage, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.MaterialID, rec.Mode, rec.Difficulty, rec.SubmittedAt,
		rec.ScoreRaw, rec.ScoreTotal, rec.ScorePercentage, answers)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}

	for _, a := range rec.Answers {
		if a.Correct {
			if _, err := tx.Exec(ctx,
				`DELETE FROM wrong_questions WHERE question_id = $1`, a.QuestionID); err != nil {
				return fmt.Errorf("clearing wrong question: %w", err)
			}
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO wrong_questions
				(question_id, material_id, stem, correct_answer,
				 last_answer, chapter_title, misses, last_missed_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
			ON CONFLICT (question_id) DO UPDATE SET
				last_answer    = EXCLUDED.last_answer,
				misses         = wrong_questions.misses + 1,
				last_missed_at = EXCLUDED.last_missed_at`,
			a.QuestionID, rec.MaterialID, a.Stem, a.CorrectAnswer,
			a.UserAnswer, a.ChapterTitle, rec.SubmittedAt)
		if err != nil {
			return fmt.Errorf("recording wrong question: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) List(ctx context.Context, materialID string, limit int) ([]AttemptRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, material_id, mode, difficulty, submitted_at,
		       score_raw, score_total, score_percentage, answers
		FROM quiz_attempts
		WHERE ($1 = '' OR material_id = $1)
		ORDER BY submitted_at DESC, id
		LIMIT $2`, materialID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		var answers []byte
		if err := rows.Scan(&rec.ID, &rec.MaterialID, &rec.Mode, &rec.Difficulty,
			&rec.SubmittedAt, &rec.ScoreRaw, &rec.ScoreTotal,
			&rec.ScorePercentage, &answers); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		if err := json.Unmarshal(answers, &rec.Answers); err != nil {
			return nil, fmt.Errorf("decoding answers: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) WrongQuestions(ctx context.Context, materialID string) ([]WrongQuestion, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT question_id, material_id, stem, correct_answer,
		       last_answer, chapter_title, misses, last_missed_at
		FROM wrong_questions
		WHERE ($1 = '' OR material_id = $1)
		ORDER BY last_missed_at DESC, question_id`, materialID)
	if err != nil {
		return nil, fmt.Errorf("listing wrong questions: %w", err)
	}
	defer rows.Close()

	var out []WrongQuestion
	for rows.Next() {
		var w WrongQuestion
		if err := rows.Scan(&w.QuestionID, &w.MaterialID, &w.Stem, &w.CorrectAnswer,
			&w.LastAnswer, &w.ChapterTitle, &w.Misses, &w.LastMissedAt); err != nil {
			return nil, fmt.Errorf("scanning wrong question: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wrong questions: %w", err)
	}
	return out, nil
}
