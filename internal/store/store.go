// Package store persists profiles and routines per user. Backends hold the
// data; Gateway binds a backend to one user and wraps every failure in a
// PersistenceError.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/routine"
)

const (
	EngineJSON   = "json"
	EngineSQLite = "sqlite"
	EngineRedis  = "redis"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLabel = errors.New("invalid routine label")
)

// Routine labels.
const (
	LabelMorning = "morning"
	LabelEvening = "evening"
)

// ParseLabel accepts "morning" or "evening" in any case.
func ParseLabel(s string) (string, error) {
	switch l := strings.ToLower(strings.TrimSpace(s)); l {
	case LabelMorning, LabelEvening:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q (want morning or evening)", ErrInvalidLabel, s)
}

// LabelFor maps a step period to its storage label.
func LabelFor(p routine.Period) string {
	if p == routine.Evening {
		return LabelEvening
	}
	return LabelMorning
}

// PersistenceError reports a failed store operation. It never affects the
// routine that was already generated.
type PersistenceError struct {
	Op    string
	Label string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Label, e.Err)
	}
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Header is the routine metadata saved next to a full routine.
type Header struct {
	Version     int            `json:"version"`
	Source      routine.Source `json:"source"`
	Model       string         `json:"model,omitempty"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// HeaderOf returns the metadata of r.
func HeaderOf(r routine.Routine) Header {
	return Header{
		Version:     r.Version,
		Source:      r.Source,
		Model:       r.Model,
		GeneratedAt: r.GeneratedAt.UTC(),
	}
}

// Apply copies h onto r.
func (h Header) Apply(r *routine.Routine) {
	r.Version = h.Version
	r.Source = h.Source
	r.Model = h.Model
	r.GeneratedAt = h.GeneratedAt
}

// Backend stores data for many users. Labels passed to a Backend are already
// validated.
type Backend interface {
	SaveProfile(ctx context.Context, userID string, p *profile.Profile) error
	LoadProfile(ctx context.Context, userID string) (*profile.Profile, error)
	SaveRoutine(ctx context.Context, userID, label string, steps []routine.Step) error
	LoadRoutine(ctx context.Context, userID, label string) ([]routine.Step, error)
	// SaveRoutineSet replaces the header and both periods in one operation:
	// either all three are stored or none is.
	SaveRoutineSet(ctx context.Context, userID string, h Header, morning, evening []routine.Step) error
	LoadHeader(ctx context.Context, userID string) (Header, error)
	Close() error
}

// NewByEngine opens the backend named by engine. path is the file for json
// and sqlite; redisURL is used for redis.
func NewByEngine(engine, path, redisURL string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineSQLite:
		return NewSQLiteStore(path)
	case EngineJSON:
		return NewJSONStore(path)
	case EngineRedis:
		return NewRedisStore(redisURL)
	default:
		return nil, errors.New("unsupported store engine: " + engine)
	}
}

// Gateway is the per-user persistence contract used by generation.
type Gateway struct {
	backend Backend
	userID  string
}

// ForUser binds backend to userID.
func ForUser(backend Backend, userID string) *Gateway {
	return &Gateway{backend: backend, userID: userID}
}

func (g *Gateway) UserID() string { return g.userID }

func (g *Gateway) SaveProfile(ctx context.Context, p *profile.Profile) error {
	if err := g.backend.SaveProfile(ctx, g.userID, p); err != nil {
		return &PersistenceError{Op: "save_profile", Err: err}
	}
	return nil
}

func (g *Gateway) LoadProfile(ctx context.Context) (*profile.Profile, error) {
	p, err := g.backend.LoadProfile(ctx, g.userID)
	if err != nil {
		return nil, &PersistenceError{Op: "load_profile", Err: err}
	}
	return p, nil
}

// SaveRoutine replaces the steps stored under label.
func (g *Gateway) SaveRoutine(ctx context.Context, steps []routine.Step, label string) error {
	l, err := ParseLabel(label)
	if err != nil {
		return &PersistenceError{Op: "save_routine", Label: label, Err: err}
	}
	if err := g.backend.SaveRoutine(ctx, g.userID, l, steps); err != nil {
		return &PersistenceError{Op: "save_routine", Label: l, Err: err}
	}
	return nil
}

// SaveGenerated stores a whole routine. Its header and both periods are
// written together, so a reader never sees one request's morning next to
// another's evening.
func (g *Gateway) SaveGenerated(ctx context.Context, r routine.Routine) error {
	if err := g.backend.SaveRoutineSet(ctx, g.userID, HeaderOf(r), r.Morning, r.Evening); err != nil {
		return &PersistenceError{Op: "save_generated", Err: err}
	}
	return nil
}

// LoadHeader returns the metadata saved by SaveGenerated.
func (g *Gateway) LoadHeader(ctx context.Context) (Header, error) {
	h, err := g.backend.LoadHeader(ctx, g.userID)
	if err != nil {
		return Header{}, &PersistenceError{Op: "load_header", Err: err}
	}
	return h, nil
}

// LoadRoutine returns the steps stored under label, or an error wrapping
// ErrNotFound when none were saved.
func (g *Gateway) LoadRoutine(ctx context.Context, label string) ([]routine.Step, error) {
	l, err := ParseLabel(label)
	if err != nil {
		return nil, &PersistenceError{Op: "load_routine", Label: label, Err: err}
	}
	steps, err := g.backend.LoadRoutine(ctx, g.userID, l)
	if err != nil {
		return nil, &PersistenceError{Op: "load_routine", Label: l, Err: err}
	}
	return steps, nil
}

// LoadSaved reassembles the saved morning and evening routine with its
// header. A missing period is returned empty; ErrNotFound is returned only
// when both are missing. A routine only ever saved one label at a time has
// no header and comes back with zero metadata.
func (g *Gateway) LoadSaved(ctx context.Context) (routine.Routine, error) {
	var r routine.Routine
	missing := 0
	for _, label := range []string{LabelMorning, LabelEvening} {
		steps, err := g.LoadRoutine(ctx, label)
		switch {
		case errors.Is(err, ErrNotFound):
			missing++
		case err != nil:
			return routine.Routine{}, err
		}
		if label == LabelMorning {
			r.Morning = steps
		} else {
			r.Evening = steps
		}
	}
	if missing == 2 {
		return routine.Routine{}, &PersistenceError{Op: "load_routine", Err: ErrNotFound}
	}
	h, err := g.LoadHeader(ctx)
	switch {
	case err == nil:
		h.Apply(&r)
	case !errors.Is(err, ErrNotFound):
		return routine.Routine{}, err
	}
	return r, nil
}
