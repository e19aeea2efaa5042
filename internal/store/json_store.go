package store

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/routine"
)

type userState struct {
	Profile  *profile.Profile          `json:"profile,omitempty"`
	Header   *Header                   `json:"header,omitempty"`
	Routines map[string][]routine.Step `json:"routines,omitempty"`
}

type fileState struct {
	Users map[string]*userState `json:"users"`
}

// JSONStore keeps everything in one JSON file, rewritten atomically on every
// save.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

func NewJSONStore(filePath string) (*JSONStore, error) {
	s := &JSONStore{
		filePath: filePath,
		state:    fileState{Users: make(map[string]*userState)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) SaveProfile(_ context.Context, userID string, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLocked(userID).Profile = p.Clone()
	return s.persistLocked()
}

func (s *JSONStore) LoadProfile(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.Users[userID]
	if !ok || u.Profile == nil {
		return nil, ErrNotFound
	}
	return u.Profile.Clone(), nil
}

func (s *JSONStore) SaveRoutine(_ context.Context, userID, label string, steps []routine.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userID)
	if u.Routines == nil {
		u.Routines = make(map[string][]routine.Step)
	}
	u.Routines[label] = append([]routine.Step{}, steps...)
	return s.persistLocked()
}

func (s *JSONStore) LoadRoutine(_ context.Context, userID, label string) ([]routine.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.Users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	steps, ok := u.Routines[label]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]routine.Step{}, steps...), nil
}

// SaveRoutineSet swaps in the header and both periods and rewrites the file.
// A failed write restores the previous in-memory state.
func (s *JSONStore) SaveRoutineSet(_ context.Context, userID string, h Header, morning, evening []routine.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userID)
	prevHeader, prevRoutines := u.Header, u.Routines

	routines := make(map[string][]routine.Step, len(prevRoutines)+2)
	maps.Copy(routines, prevRoutines)
	routines[LabelMorning] = append([]routine.Step{}, morning...)
	routines[LabelEvening] = append([]routine.Step{}, evening...)
	u.Header = &h
	u.Routines = routines

	if err := s.persistLocked(); err != nil {
		u.Header, u.Routines = prevHeader, prevRoutines
		return err
	}
	return nil
}

func (s *JSONStore) LoadHeader(_ context.Context, userID string) (Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.Users[userID]
	if !ok || u.Header == nil {
		return Header{}, ErrNotFound
	}
	return *u.Header, nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) userLocked(userID string) *userState {
	u, ok := s.state.Users[userID]
	if !ok {
		u = &userState{}
		s.state.Users[userID] = u
	}
	return u
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Users == nil {
		state.Users = make(map[string]*userState)
	}
	s.state = state
	return nil
}

func (s *JSONStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.filePath)
}
