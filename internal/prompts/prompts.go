// Package prompts holds the LLM prompt pack. A built-in pack ships
// embedded in the binary; deployments can override it with a YAML file.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Exemplar is one curated question/answer pair used as a few-shot
// demonstration in chat prompts.
type Exemplar struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Pack is the full set of prompt templates the service uses.
// Templates use {{name}} placeholders filled in by Render.
type Pack struct {
	ChatSystem     string     `yaml:"chat_system"`
	NoContextNote  string     `yaml:"no_context_note"`
	QueryExpansion string     `yaml:"query_expansion"`
	QuizChoice     string     `yaml:"quiz_choice"`
	QuizBoolean    string     `yaml:"quiz_boolean"`
	Diagnostic     string     `yaml:"diagnostic"`
	PerfectScore   string     `yaml:"perfect_score"`
	FewShot        []Exemplar `yaml:"few_shot"`
}

// Default returns the embedded prompt pack.
func Default() (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(defaultsYAML, &p); err != nil {
		return nil, fmt.Errorf("parsing embedded prompts: %w", err)
	}
	return &p, nil
}

// Load reads a prompt pack from path. Fields left empty in the file
// keep their embedded defaults.
func Load(path string) (*Pack, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt pack: %w", err)
	}
	var override Pack
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing prompt pack %s: %w", path, err)
	}
	merge(p, &override)
	return p, nil
}

func merge(base, override *Pack) {
	if override.ChatSystem != "" {
		base.ChatSystem = override.ChatSystem
	}
	if override.NoContextNote != "" {
		base.NoContextNote = override.NoContextNote
	}
	if override.QueryExpansion != "" {
		base.QueryExpansion = override.QueryExpansion
	}
	if override.QuizChoice != "" {
		base.QuizChoice = override.QuizChoice
	}
	if override.QuizBoolean != "" {
		base.QuizBoolean = override.QuizBoolean
	}
	if override.Diagnostic != "" {
		base.Diagnostic = override.Diagnostic
	}
	if override.PerfectScore != "" {
		base.PerfectScore = override.PerfectScore
	}
	if len(override.FewShot) > 0 {
		base.FewShot = override.FewShot
	}
}

// Render substitutes {{name}} placeholders in a template.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
