package quiz

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const choiceSchemaJSON = `{
	"type": "object",
	"required": ["stem", "options", "correct_answer", "explanation"],
	"properties": {
		"stem": {"type": "string", "minLength": 1},
		"options": {
			"type": "array",
			"minItems": 2,
			"maxItems": 6,
			"items": {"type": "string", "minLength": 1}
		},
		"correct_answer": {"type": "string", "minLength": 1},
		"explanation": {"type": "string"}
	}
}`

const booleanSchemaJSON = `{
	"type": "object",
	"required": ["stem", "correct_answer"],
	"properties": {
		"stem": {"type": "string", "minLength": 1},
		"correct_answer": {"type": "string", "enum": ["True", "False", "true", "false"]},
		"explanation": {"type": "string"}
	}
}`

var (
	choiceSchema  = gojsonschema.NewStringLoader(choiceSchemaJSON)
	booleanSchema = gojsonschema.NewStringLoader(booleanSchemaJSON)
)

// rawQuestion is the LLM's JSON shape before it becomes a Question.
type rawQuestion struct {
	Stem          string   `json:"stem"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// parseQuestion extracts and validates one question object from raw
// LLM output. Models often wrap JSON in code fences or prose, so the
// first balanced object in the text is used.
func parseQuestion(content string, qtype QType) (*rawQuestion, error) {
	payload, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}

	schema := choiceSchema
	if qtype == TypeBoolean {
		schema = booleanSchema
	}
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("validating question JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("question JSON rejected: %s", strings.Join(msgs, "; "))
	}

	var raw rawQuestion
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decoding question JSON: %w", err)
	}
	return &raw, nil
}

// extractJSONObject returns the first balanced top-level {...} in the
// text, skipping braces inside JSON strings.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
