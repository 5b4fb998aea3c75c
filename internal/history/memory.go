package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used by tests and single-node
// deployments without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts []AttemptRecord
	wrong    map[string]WrongQuestion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wrong: make(map[string]WrongQuestion)}
}

func (s *MemoryStore) Append(_ context.Context, rec AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}
	s.attempts = append(s.attempts, rec)
	for _, a := range rec.Answers {
		if a.Correct {
			delete(s.wrong, a.QuestionID)
			continue
		}
		w, ok := s.wrong[a.QuestionID]
		if !ok {
			w = WrongQuestion{
				QuestionID:    a.QuestionID,
				MaterialID:    rec.MaterialID,
				Stem:          a.Stem,
				CorrectAnswer: a.CorrectAnswer,
				ChapterTitle:  a.ChapterTitle,
			}
		}
		w.LastAnswer = a.UserAnswer
		w.Misses++
		w.LastMissedAt = rec.SubmittedAt
		s.wrong[a.QuestionID] = w
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, materialID string, limit int) ([]AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AttemptRecord, 0, len(s.attempts))
	for _, rec := range s.attempts {
		if materialID == "" || rec.MaterialID == materialID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) WrongQuestions(_ context.Context, materialID string) ([]WrongQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WrongQuestion, 0, len(s.wrong))
	for _, w := range s.wrong {
		if materialID == "" || w.MaterialID == materialID {
			out = append(out, w)
		}
	}
	// Most recently missed first, question id as the stable tie-break.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMissedAt.Equal(out[j].LastMissedAt) {
			return out[i].LastMissedAt.After(out[j].LastMissedAt)
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}
