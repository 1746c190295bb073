// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package memory writes the intelligence-memory tree: one JSON record per run
// and a per-platform activity log that agent personas read back.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ccos/internal/apierr"
	"ccos/internal/params"
	"ccos/internal/platform"
)

// Record is the persisted form of one invocation.
type Record struct {
	ID         string              `json:"id"`
	Platform   string              `json:"platform"`
	Action     string              `json:"action"`
	Params     params.Params       `json:"params,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMS int64               `json:"duration_ms"`
	Status     string              `json:"status"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Error      string              `json:"error,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Text       string              `json:"text,omitempty"`
	Artifacts  []platform.Artifact `json:"artifacts,omitempty"`
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store writes records below Dir.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// PathFor returns where a record is written:
// <dir>/<platform>/<YYYY-MM-DD>/<HHMMSS>-<action>-<id8>.json
func (s *Store) PathFor(r Record) string {
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	ts := r.StartedAt.UTC()
	return filepath.Join(
		s.Dir,
		r.Platform,
		ts.Format("2006-01-02"),
		fmt.Sprintf("%s-%s-%s.json", ts.Format("150405"), r.Action, id),
	)
}

// Write persists r and appends a line to the platform activity log.
func (s *Store) Write(r Record) (string, error) {
	path := s.PathFor(r)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", apierr.IO("could not create memory directory", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode memory record: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", apierr.IO("could not write memory record", path, err)
	}

	logPath := filepath.Join(s.Dir, r.Platform, "activity.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return path, apierr.IO("could not open activity log", logPath, err)
	}
	defer f.Close()
	line := fmt.Sprintf("%s %s %s %s\n", r.StartedAt.UTC().Format(time.RFC3339), r.Action, r.Status, r.ID)
	if _, err := f.WriteString(line); err != nil {
		return path, apierr.IO("could not append activity log", logPath, err)
	}
	return path, nil
}
