package quiz

import (
	"errors"
	"fmt"

	"github.com/dshills/skinroutine/internal/profile"
)

var (
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrUnknownQuestionID = errors.New("unknown question id")
	ErrInvalidAnswerType = errors.New("answer type does not match question type")
	ErrInvalidOption     = errors.New("answer is not one of the question's options")
	ErrAnswerRequired    = errors.New("question requires an answer")
	ErrNotComplete       = errors.New("quiz is not complete")
)

// Engine walks one quiz session. It owns its profile exclusively and is not
// safe for concurrent use.
type Engine struct {
	questions []Question
	byID      map[int]int
	profile   *profile.Profile
	index     int
	complete  bool
}

// NewEngine starts a session over the embedded quiz.
func NewEngine() *Engine {
	e, err := NewEngineWith(Questions())
	if err != nil {
		// Questions() already validated the table.
		panic(err)
	}
	return e
}

// NewEngineWith starts a session over a custom question table.
func NewEngineWith(qs []Question) (*Engine, error) {
	if err := validateQuestions(qs); err != nil {
		return nil, err
	}
	byID := make(map[int]int, len(qs))
	for i, q := range qs {
		byID[q.ID] = i
	}
	return &Engine{
		questions: qs,
		byID:      byID,
		profile:   &profile.Profile{},
	}, nil
}

// Len returns the number of questions.
func (e *Engine) Len() int { return len(e.questions) }

// Index returns the current question index.
func (e *Engine) Index() int { return e.index }

// Complete reports whether the user has moved past the last question.
func (e *Engine) Complete() bool { return e.complete }

// CurrentQuestion returns the question at index.
func (e *Engine) CurrentQuestion(index int) (Question, error) {
	if index < 0 || index >= len(e.questions) {
		return Question{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(e.questions))
	}
	return e.questions[index], nil
}

// Current returns the question at the current index.
func (e *Engine) Current() Question { return e.questions[e.index] }

// RecordAnswer stores value into the profile field mapped from questionID.
// The dynamic type of value must match the question type: string for
// SingleSelect and TextField, []string for MultiSelect, bool for Toggle.
func (e *Engine) RecordAnswer(questionID int, value any) error {
	i, ok := e.byID[questionID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownQuestionID, questionID)
	}
	q := e.questions[i]

	var err error
	switch q.Type {
	case SingleSelect:
		v, ok := value.(string)
		if !ok {
			return typeError(q, value)
		}
		err = e.profile.SetChoice(q.Field, v)
	case MultiSelect:
		v, ok := value.([]string)
		if !ok {
			return typeError(q, value)
		}
		err = e.profile.SetChoices(q.Field, v)
	case Toggle:
		v, ok := value.(bool)
		if !ok {
			return typeError(q, value)
		}
		err = e.profile.SetToggle(q.Field, v)
	case TextField:
		v, ok := value.(string)
		if !ok {
			return typeError(q, value)
		}
		err = e.profile.SetText(q.Field, v)
	}
	if errors.Is(err, profile.ErrInvalidOption) {
		return fmt.Errorf("question %d: %w: %v", q.ID, ErrInvalidOption, value)
	}
	if err != nil {
		return fmt.Errorf("question %d: %w", q.ID, err)
	}
	return nil
}

// IsAnswered reports whether questionID has an answer. Only SingleSelect
// questions can be unanswered; the other types are optional and always count
// as answered, even at their zero value.
func (e *Engine) IsAnswered(questionID int) bool {
	i, ok := e.byID[questionID]
	if !ok {
		return false
	}
	q := e.questions[i]
	if q.Type != SingleSelect {
		return true
	}
	return e.profile.Choice(q.Field) != ""
}

// Progress returns index/(N-1) clamped to [0,1].
func (e *Engine) Progress() float64 {
	if len(e.questions) < 2 {
		if e.complete {
			return 1
		}
		return 0
	}
	p := float64(e.index) / float64(len(e.questions)-1)
	return min(max(p, 0), 1)
}

// Next advances one question. The current question must be answered. Calling
// Next on the last question completes the quiz.
func (e *Engine) Next() error {
	if e.complete {
		return nil
	}
	q := e.questions[e.index]
	if !e.IsAnswered(q.ID) {
		return fmt.Errorf("question %d (%s): %w", q.ID, q.Field, ErrAnswerRequired)
	}
	if e.index == len(e.questions)-1 {
		e.complete = true
		return nil
	}
	e.index++
	return nil
}

// Back moves one question back. After completion it reopens the last
// question; at index 0 it does nothing.
func (e *Engine) Back() {
	if e.complete {
		e.complete = false
		return
	}
	if e.index > 0 {
		e.index--
	}
}

// Apply records every answer in question order and then advances through the
// quiz, stopping at the first error. Questions absent from answers keep their
// current value.
func (e *Engine) Apply(answers map[int]any) error {
	for id := range answers {
		if _, ok := e.byID[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownQuestionID, id)
		}
	}
	for _, q := range e.questions {
		v, ok := answers[q.ID]
		if !ok {
			continue
		}
		if err := e.RecordAnswer(q.ID, v); err != nil {
			return err
		}
	}
	for !e.complete {
		if err := e.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Profile returns a copy of the profile as answered so far.
func (e *Engine) Profile() *profile.Profile { return e.profile.Clone() }

// Finish returns a copy of the completed profile.
func (e *Engine) Finish() (*profile.Profile, error) {
	if !e.complete {
		return nil, ErrNotComplete
	}
	return e.profile.Clone(), nil
}

func typeError(q Question, value any) error {
	return fmt.Errorf("question %d expects %s, got %T: %w", q.ID, q.Type, value, ErrInvalidAnswerType)
}
