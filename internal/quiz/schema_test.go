package quiz

import (
	"strings"
	"testing"
)

const validChoiceJSON = `{"stem": "What does L2 regularization add to the loss?",
 "options": ["Sum of squared weights", "Sum of absolute weights", "Dropout mask", "Momentum term"],
 "correct_answer": "Sum of squared weights",
 "explanation": "L2 adds the squared weight norm."}`

func TestParseQuestion_Choice(t *testing.T) {
	raw, err := parseQuestion(validChoiceJSON, TypeChoice)
	if err != nil {
		t.Fatalf("parseQuestion() error = %v", err)
	}
	if len(raw.Options) != 4 {
		t.Errorf("got %d options, want 4", len(raw.Options))
	}
	if raw.CorrectAnswer != "Sum of squared weights" {
		t.Errorf("correct_answer = %q", raw.CorrectAnswer)
	}
}

func TestParseQuestion_StripsCodeFence(t *testing.T) {
	fenced := "Here is the question:\n```json\n" + validChoiceJSON + "\n```\nHope that helps!"
	raw, err := parseQuestion(fenced, TypeChoice)
	if err != nil {
		t.Fatalf("parseQuestion() error = %v", err)
	}
	if !strings.Contains(raw.Stem, "L2 regularization") {
		t.Errorf("stem = %q", raw.Stem)
	}
}

func TestParseQuestion_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		qtype   QType
	}{
		{"no json at all", "I cannot answer that.", TypeChoice},
		{"missing options", `{"stem": "s", "correct_answer": "a", "explanation": ""}`, TypeChoice},
		{"empty stem", `{"stem": "", "options": ["a", "b"], "correct_answer": "a", "explanation": ""}`, TypeChoice},
		{"one option", `{"stem": "s", "options": ["a"], "correct_answer": "a", "explanation": ""}`, TypeChoice},
		{"boolean bad answer", `{"stem": "s", "correct_answer": "maybe"}`, TypeBoolean},
		{"truncated json", `{"stem": "s", "options": ["a",`, TypeChoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseQuestion(tt.content, tt.qtype); err == nil {
				t.Error("invalid payload was accepted")
			}
		})
	}
}

func TestParseQuestion_BooleanLowercaseAnswer(t *testing.T) {
	raw, err := parseQuestion(`{"stem": "Bagging reduces variance.", "correct_answer": "true"}`, TypeBoolean)
	if err != nil {
		t.Fatalf("parseQuestion() error = %v", err)
	}
	if raw.CorrectAnswer != "true" {
		t.Errorf("correct_answer = %q", raw.CorrectAnswer)
	}
}

func TestExtractJSONObject_BracesInsideStrings(t *testing.T) {
	payload := `{"stem": "What does {x} mean?", "correct_answer": "True"}`
	got, ok := extractJSONObject("noise " + payload + " trailing")
	if !ok {
		t.Fatal("no object found")
	}
	if got != payload {
		t.Errorf("extracted %q, want %q", got, payload)
	}
}
