// Package routine defines the routine values produced by the generators and
// consumed by persistence and rendering.
package routine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Period is the time of day a step belongs to. The zero value means the step
// was produced without a period tag.
type Period string

const (
	Morning Period = "Morning"
	Evening Period = "Evening"
)

// IDSource hands out step identifiers.
type IDSource interface {
	NewID() string
}

type uuidSource struct{}

func (uuidSource) NewID() string { return uuid.NewString() }

// UUIDs returns the production IDSource.
func UUIDs() IDSource { return uuidSource{} }

// CounterIDs is a deterministic IDSource yielding prefix-1, prefix-2, ...
type CounterIDs struct {
	prefix string
	n      atomic.Int64
}

func NewCounterIDs(prefix string) *CounterIDs {
	return &CounterIDs{prefix: prefix}
}

func (c *CounterIDs) NewID() string {
	return fmt.Sprintf("%s-%d", c.prefix, c.n.Add(1))
}

// Step is one immutable routine step. Two steps are equal when their ids
// are equal; content is not compared.
type Step struct {
	id          string
	name        string
	product     string
	description string
	period      Period
}

// NewStep assigns a fresh id from ids. An empty product means no specific
// product.
func NewStep(ids IDSource, name, product, description string, period Period) Step {
	return Step{
		id:          ids.NewID(),
		name:        name,
		product:     product,
		description: description,
		period:      period,
	}
}

func (s Step) ID() string          { return s.id }
func (s Step) Name() string        { return s.name }
func (s Step) Product() string     { return s.product }
func (s Step) Description() string { return s.description }
func (s Step) Period() Period      { return s.period }

// Equal reports identity equality.
func (s Step) Equal(o Step) bool {
	return s.id != "" && s.id == o.id
}

func (s Step) String() string {
	if s.product == "" {
		return s.name
	}
	return fmt.Sprintf("%s (%s)", s.name, s.product)
}

type stepJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Product     string `json:"product"`
	Description string `json:"description"`
	TimeOfDay   Period `json:"timeOfDay,omitempty"`
}

func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepJSON{
		ID:          s.id,
		Name:        s.name,
		Product:     s.product,
		Description: s.description,
		TimeOfDay:   s.period,
	})
}

// UnmarshalJSON restores a persisted step with its original id.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	st, err := Restore(w.ID, w.Name, w.Product, w.Description, w.TimeOfDay)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Restore rebuilds a stored step with its original id.
func Restore(id, name, product, description string, period Period) (Step, error) {
	if id == "" {
		return Step{}, errors.New("routine step: id is required")
	}
	switch period {
	case "", Morning, Evening:
	default:
		return Step{}, fmt.Errorf("routine step: invalid timeOfDay %q", period)
	}
	return Step{id: id, name: name, product: product, description: description, period: period}, nil
}
