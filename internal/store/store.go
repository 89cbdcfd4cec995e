// Package store persists run records and audit events in SQLite. It is the
// durable tier behind the in-memory audit ring buffer and the source for the
// `quasim audit` subcommands.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"quasim/internal/audit"
)

// Store wraps a single-connection SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// RunRecord describes one completed simulation, optimization, calibration,
// or benchmark run.
type RunRecord struct {
	ID        string
	Kind      string // simulate, optimize, calibrate, bench
	StartedAt time.Time
	Duration  time.Duration
	Objective float64
	Artifact  string // path of the JSON artifact, if any
}

// Open initializes the SQLite database at the given path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		objective   REAL,
		artifact    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind, started_at DESC);

	CREATE TABLE IF NOT EXISTS audit_events (
		id          TEXT PRIMARY KEY,
		ts          INTEGER NOT NULL,
		event       TEXT NOT NULL,
		run_id      TEXT,
		target      TEXT,
		success     INTEGER NOT NULL,
		duration_ms INTEGER,
		error       TEXT,
		message     TEXT,
		fields      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun upserts a run record.
func (s *Store) SaveRun(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, kind, started_at, duration_ms, objective, artifact)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			duration_ms = excluded.duration_ms,
			objective   = excluded.objective,
			artifact    = excluded.artifact`,
		rec.ID, rec.Kind, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(),
		rec.Objective, rec.Artifact)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first. An empty kind
// matches every run kind.
func (s *Store) RecentRuns(kind string, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, kind, started_at, duration_ms, objective, artifact
		FROM runs`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, durMs int64
		var objective sql.NullFloat64
		var artifact sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Kind, &started, &durMs, &objective, &artifact); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.Duration = time.Duration(durMs) * time.Millisecond
		rec.Objective = objective.Float64
		rec.Artifact = artifact.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveEvent persists one audit event. Implements audit.Sink.
func (s *Store) SaveEvent(e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fields []byte
	if len(e.Fields) > 0 {
		var err error
		fields, err = json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode event fields: %w", err)
		}
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO audit_events
			(id, ts, event, run_id, target, success, duration_ms, error, message, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, string(e.Type), e.RunID, e.Target, boolToInt(e.Success),
		e.DurationMs, e.Error, e.Message, string(fields))
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}
	return nil
}

// EventsByRun returns the persisted events of one run, oldest first.
func (s *Store) EventsByRun(runID string) ([]audit.Event, error) {
	return s.queryEvents(`WHERE run_id = ? ORDER BY ts ASC`, runID)
}

// RecentEvents returns the most recent persisted events, oldest first.
func (s *Store) RecentEvents(limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	events, err := s.queryEvents(`ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *Store) queryEvents(clause string, args ...interface{}) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, ts, event, run_id, target, success, duration_ms, error, message, fields
		FROM audit_events `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		var typ string
		var success int
		var fields sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &e.RunID, &e.Target,
			&success, &e.DurationMs, &e.Error, &e.Message, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = audit.EventType(typ)
		e.Success = success != 0
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				s.logger.Debug("failed to decode event fields", zap.String("id", e.ID), zap.Error(err))
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
