// Package quiz defines the onboarding questionnaire and the engine that walks
// a user through it, recording answers into a profile.Profile.
package quiz

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dshills/skinroutine/internal/profile"
)

// Type is the answer shape a question expects.
type Type string

const (
	SingleSelect Type = "SingleSelect"
	MultiSelect  Type = "MultiSelect"
	Toggle       Type = "Toggle"
	TextField    Type = "TextField"
)

// kindFor maps a question type to the profile field kind it must target.
var kindFor = map[Type]profile.Kind{
	SingleSelect: profile.KindChoice,
	MultiSelect:  profile.KindChoices,
	Toggle:       profile.KindToggle,
	TextField:    profile.KindText,
}

// Question is one immutable quiz question.
type Question struct {
	ID          int           `json:"id" yaml:"id"`
	Field       profile.Field `json:"field" yaml:"field"`
	Type        Type          `json:"type" yaml:"type"`
	Prompt      string        `json:"prompt" yaml:"prompt"`
	Options     []string      `json:"options" yaml:"-"`
	Placeholder string        `json:"placeholder,omitempty" yaml:"placeholder"`
}

//go:embed questions.yaml
var questionsYAML []byte

var (
	loadOnce  sync.Once
	questions []Question
)

// Questions returns the quiz in traversal order. The embedded table is parsed
// once; a malformed table panics on first use.
func Questions() []Question {
	loadOnce.Do(func() {
		qs, err := parseQuestions(questionsYAML)
		if err != nil {
			panic(fmt.Sprintf("quiz: embedded questions.yaml: %v", err))
		}
		questions = qs
	})
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Options = slices.Clone(q.Options)
		out[i] = q
	}
	return out
}

func parseQuestions(data []byte) ([]Question, error) {
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}
	if err := validateQuestions(qs); err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].Options = profile.Options(qs[i].Field)
	}
	return qs, nil
}

// validateQuestions requires ids 1..N in order, a known type per question,
// and a target field whose kind matches that type.
func validateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("no questions defined")
	}
	seen := make(map[profile.Field]int, len(qs))
	for i, q := range qs {
		prefix := fmt.Sprintf("question[%d]", i)
		if q.ID != i+1 {
			return fmt.Errorf("%s: id %d out of sequence (want %d)", prefix, q.ID, i+1)
		}
		want, ok := kindFor[q.Type]
		if !ok {
			return fmt.Errorf("%s: unknown type %q", prefix, q.Type)
		}
		if got := profile.KindOf(q.Field); got != want {
			return fmt.Errorf("%s: field %q has kind %q, type %s needs %q", prefix, q.Field, got, q.Type, want)
		}
		if prev, dup := seen[q.Field]; dup {
			return fmt.Errorf("%s: field %q already mapped by question %d", prefix, q.Field, prev)
		}
		seen[q.Field] = q.ID
		if q.Prompt == "" {
			return fmt.Errorf("%s: prompt is required", prefix)
		}
	}
	return nil
}
