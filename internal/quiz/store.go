package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/mltutor/mltutor/internal/platform/database"
)

// ErrQuestionNotFound is returned when a question id is unknown.
var ErrQuestionNotFound = errors.New("quiz: question not found")

// QuestionStore persists generated questions so review quizzes can
// replay them without another LLM round trip.
type QuestionStore interface {
	Save(ctx context.Context, questions []Question) error
	Get(ctx context.Context, id string) (Question, error)
	GetMany(ctx context.Context, ids []string) ([]Question, error)
}

// MemoryQuestionStore keeps questions in process memory.
type MemoryQuestionStore struct {
	mu   sync.RWMutex
	byID map[string]Question
}

func NewMemoryQuestionStore() *MemoryQuestionStore {
	return &MemoryQuestionStore{byID: make(map[string]Question)}
}

func (s *MemoryQuestionStore) Save(_ context.Context, questions []Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.byID[q.ID] = q
	}
	return nil
}

func (s *MemoryQuestionStore) Get(_ context.Context, id string) (Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.byID[id]
	if !ok {
		return Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func (s *MemoryQuestionStore) GetMany(_ context.Context, ids []string) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

const questionsSchema = `
CREATE TABLE IF NOT EXISTS quiz_questions (
	id             TEXT PRIMARY KEY,
	material_id    TEXT NOT NULL,
	chapter_id     TEXT NOT NULL DEFAULT '',
	qtype          TEXT NOT NULL,
	stem           TEXT NOT NULL,
	options        TEXT[] NOT NULL,
	correct_answer TEXT NOT NULL,
	explanation    TEXT NOT NULL DEFAULT '',
	difficulty     TEXT NOT NULL DEFAULT '',
	source_snippet TEXT NOT NULL DEFAULT '',
	page           INT NOT NULL DEFAULT 0
);
`

// PostgresQuestionStore persists questions in a quiz_questions table.
type PostgresQuestionStore struct {
	db *database.DB
}

func NewPostgresQuestionStore(ctx context.Context, db *database.DB) (*PostgresQuestionStore, error) {
	if _, err := db.Pool.Exec(ctx, questionsSchema); err != nil {
		return nil, fmt.Errorf("ensuring quiz_questions schema: %w", err)
	}
	return &PostgresQuestionStore{db: db}, nil
}

func (s *PostgresQuestionStore) Save(ctx context.Context, questions []Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(`
			INSERT INTO quiz_questions
				(id, material_id, chapter_id, qtype, stem, options,
				 correct_answer, explanation, difficulty, source_snippet, page)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`,
			q.ID, q.MaterialID, q.ChapterID, string(q.Type), q.Stem, q.Options,
			q.CorrectAnswer, q.Explanation, q.Difficulty, q.SourceSnippet, q.Page)
	}
	br := s.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range questions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting question: %w", err)
		}
	}
	return nil
}

func (s *PostgresQuestionStore) Get(ctx context.Context, id string) (Question, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, material_id, chapter_id, qtype, stem, options,
		       correct_answer, explanation, difficulty, source_snippet, page
		FROM quiz_questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Question{}, ErrQuestionNotFound
	}
	if err != nil {
		return Question{}, fmt.Errorf("loading question: %w", err)
	}
	return q, nil
}

func (s *PostgresQuestionStore) GetMany(ctx context.Context, ids []string) ([]Question, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, material_id, chapter_id, qtype, stem, options,
		       correct_answer, explanation, difficulty, source_snippet, page
		FROM quiz_questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("loading questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Question)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating questions: %w", err)
	}

	// Preserve the caller's id order.
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func scanQuestion(row pgx.Row) (Question, error) {
	var q Question
	var qtype string
	err := row.Scan(&q.ID, &q.MaterialID, &q.ChapterID, &qtype, &q.Stem, &q.Options,
		&q.CorrectAnswer, &q.Explanation, &q.Difficulty, &q.SourceSnippet, &q.Page)
	q.Type = QType(qtype)
	return q, err
}
