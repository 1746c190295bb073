// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package history keeps a sqlite ledger of every invocation so that past runs
// can be listed from the CLI and the HTTP API.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ccos/internal/logger"
)

// Run is one ledger row.
type Run struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"error_code,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Artifacts  []string  `json:"artifacts,omitempty"`
}

// Filter narrows Recent.
type Filter struct {
	Platform string
	Limit    int
}

// Store manages the run ledger database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// DefaultPath is history.db in the ccos state directory.
func DefaultPath() (string, error) {
	dir, err := logger.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One writer at a time; batch runs share the store.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		artifacts TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_runs_platform_started ON runs(platform, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a run.
func (s *Store) Record(ctx context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifacts := r.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	encoded, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, platform, action, status, error_code, started_at, duration_ms, artifacts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Platform, r.Action, r.Status, r.ErrorCode,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.DurationMS, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns the newest runs first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, platform, action, status, error_code, started_at, duration_ms, artifacts FROM runs`
	var args []any
	if f.Platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, f.Platform)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			started   string
			artifacts string
		)
		if err := rows.Scan(&r.ID, &r.Platform, &r.Action, &r.Status, &r.ErrorCode, &started, &r.DurationMS, &artifacts); err != nil {
			return nil, fmt.Errorf("failed to read history row: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		_ = json.Unmarshal([]byte(artifacts), &r.Artifacts)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
