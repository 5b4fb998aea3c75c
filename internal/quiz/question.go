// Package quiz generates structured questions from indexed material
// and grades submitted answers.
package quiz

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

var (
	// ErrNoQuestionsGenerated means every slot in a batch failed
	// validation. A merely short batch is not an error.
	ErrNoQuestionsGenerated = errors.New("quiz: no questions generated")
	// ErrMaterialNotIndexed means the target material has no chunks.
	ErrMaterialNotIndexed = errors.New("quiz: material not indexed")
)

// QType is the question kind.
type QType string

const (
	TypeChoice  QType = "choice"
	TypeBoolean QType = "boolean"
)

// Canonical boolean option labels.
const (
	LabelTrue  = "True"
	LabelFalse = "False"
)

// Difficulty levels accepted by the generator.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is one generated quiz item. Immutable after creation.
type Question struct {
	ID            string   `json:"id"`
	MaterialID    string   `json:"material_id"`
	ChapterID     string   `json:"chapter_id,omitempty"`
	Type          QType    `json:"qtype"`
	Stem          string   `json:"stem"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	SourceSnippet string   `json:"source_snippet"`
	Page          int      `json:"page"`
}

var answerFolder = cases.Fold()

// NormalizeAnswer prepares an answer string for comparison: trimmed
// and case-folded, with runs of inner whitespace collapsed.
func NormalizeAnswer(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return answerFolder.String(s)
}

// AnswersEqual compares a user answer against the stored correct
// answer. Empty user answers never match.
func AnswersEqual(userAnswer, correctAnswer string) bool {
	u := NormalizeAnswer(userAnswer)
	if u == "" {
		return false
	}
	return u == NormalizeAnswer(correctAnswer)
}

// validate enforces the structural invariants a question must satisfy
// before it may be returned to a caller.
func (q *Question) validate() error {
	if strings.TrimSpace(q.Stem) == "" {
		return errors.New("empty stem")
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return errors.New("empty correct answer")
	}
	switch q.Type {
	case TypeChoice:
		if len(q.Options) < 2 {
			return errors.New("choice question needs at least two options")
		}
		for _, opt := range q.Options {
			if AnswersEqual(q.CorrectAnswer, opt) {
				return nil
			}
		}
		return errors.New("correct answer not among options")
	case TypeBoolean:
		if len(q.Options) != 2 || q.Options[0] != LabelTrue || q.Options[1] != LabelFalse {
			return errors.New("boolean question must carry the canonical labels")
		}
		if q.CorrectAnswer != LabelTrue && q.CorrectAnswer != LabelFalse {
			return errors.New("boolean answer must be a canonical label")
		}
		return nil
	default:
		return errors.New("unknown question type")
	}
}
