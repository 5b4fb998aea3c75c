package quiz

import (
	"context"
	"fmt"

	"github.com/mltutor/mltutor/internal/history"
)

// Reviewer rebuilds quizzes from questions the student currently has
// wrong, replaying stored questions instead of generating new ones.
type Reviewer struct {
	questions QuestionStore
	history   history.Store
}

func NewReviewer(questions QuestionStore, hist history.Store) *Reviewer {
	return &Reviewer{questions: questions, history: hist}
}

// Batch returns up to limit previously missed questions, most recently
// missed first. A student with nothing wrong gets an empty batch, not
// an error.
func (r *Reviewer) Batch(ctx context.Context, materialID string, limit int) ([]Question, error) {
	wrong, err := r.history.WrongQuestions(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("loading wrong questions: %w", err)
	}
	if len(wrong) == 0 {
		return []Question{}, nil
	}
	if limit > 0 && len(wrong) > limit {
		wrong = wrong[:limit]
	}

	ids := make([]string, len(wrong))
	for i, w := range wrong {
		ids[i] = w.QuestionID
	}
	questions, err := r.questions.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading stored questions: %w", err)
	}
	if questions == nil {
		questions = []Question{}
	}
	return questions, nil
}
