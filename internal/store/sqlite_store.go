package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/routine"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers; the saves fan out concurrently.
	db.SetMaxOpenConns(1)
	st := &SQLiteStore{db: db}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, userID string, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profiles
		(user_id, data, updated_at)
		VALUES (?, ?, ?)`,
		userID,
		string(data),
		toTS(time.Now()),
	)
	return err
}

func (s *SQLiteStore) LoadProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decoding stored profile: %w", err)
	}
	return &p, nil
}

// SaveRoutine replaces the label's rows in one transaction.
func (s *SQLiteStore) SaveRoutine(ctx context.Context, userID, label string, steps []routine.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceSteps(ctx, tx, userID, label, steps); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveRoutineSet writes the header and both periods in one transaction.
func (s *SQLiteStore) SaveRoutineSet(ctx context.Context, userID string, h Header, morning, evening []routine.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO routine_headers
		(user_id, version, source, model, generated_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID,
		h.Version,
		string(h.Source),
		h.Model,
		toTS(h.GeneratedAt),
	); err != nil {
		return err
	}
	if err := replaceSteps(ctx, tx, userID, LabelMorning, morning); err != nil {
		return err
	}
	if err := replaceSteps(ctx, tx, userID, LabelEvening, evening); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadHeader(ctx context.Context, userID string) (Header, error) {
	var (
		h           Header
		source, gen string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, source, model, generated_at
		FROM routine_headers WHERE user_id = ?`,
		userID,
	).Scan(&h.Version, &source, &h.Model, &gen)
	if errors.Is(err, sql.ErrNoRows) {
		return Header{}, ErrNotFound
	}
	if err != nil {
		return Header{}, err
	}
	h.Source = routine.Source(source)
	if h.GeneratedAt, err = time.Parse(time.RFC3339Nano, gen); err != nil {
		return Header{}, fmt.Errorf("decoding generated_at: %w", err)
	}
	return h, nil
}

func replaceSteps(ctx context.Context, tx *sql.Tx, userID, label string, steps []routine.Step) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM routine_steps WHERE user_id = ? AND label = ?`,
		userID, label,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO routines
		(user_id, label, saved_at)
		VALUES (?, ?, ?)`,
		userID, label, toTS(time.Now()),
	); err != nil {
		return err
	}
	for i, st := range steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO routine_steps
			(user_id, label, position, step_id, name, product, description, period)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID,
			label,
			i,
			st.ID(),
			st.Name(),
			st.Product(),
			st.Description(),
			string(st.Period()),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) LoadRoutine(ctx context.Context, userID, label string) ([]routine.Step, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT saved_at FROM routines WHERE user_id = ? AND label = ?`,
		userID, label,
	).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, name, product, description, period
		FROM routine_steps
		WHERE user_id = ? AND label = ?
		ORDER BY position`,
		userID, label,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]routine.Step, 0)
	for rows.Next() {
		var id, name, product, description, period string
		if err := rows.Scan(&id, &name, &product, &description, &period); err != nil {
			return nil, err
		}
		st, err := routine.Restore(id, name, product, description, routine.Period(period))
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		PRAGMA journal_mode=WAL;
		CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS routines (
			user_id TEXT NOT NULL,
			label TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (user_id, label)
		);
		CREATE TABLE IF NOT EXISTS routine_headers (
			user_id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			source TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			generated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS routine_steps (
			user_id TEXT NOT NULL,
			label TEXT NOT NULL,
			position INTEGER NOT NULL,
			step_id TEXT NOT NULL,
			name TEXT NOT NULL,
			product TEXT NOT NULL,
			description TEXT NOT NULL,
			period TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (user_id, label, position)
		);
	`)
	return err
}

func toTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
