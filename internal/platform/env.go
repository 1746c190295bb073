// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package platform

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ccos/internal/config"
	"ccos/internal/httpapi"
	"ccos/internal/jobs"
	"ccos/internal/logger"
	"ccos/internal/retry"
)

// Env is everything a platform client needs, built once at startup.
type Env struct {
	Config       config.Config
	Creds        *config.Credentials
	HTTP         *httpapi.Client
	Logger       *slog.Logger
	Jobs         jobs.Options
	ArtifactsDir string
	MinBytes     int64
	Now          func() time.Time
}

// NewEnv derives the shared HTTP client, job options and directories from cfg.
func NewEnv(cfg config.Config, creds *config.Credentials, log *slog.Logger) (*Env, error) {
	if log == nil {
		log = logger.Get()
	}
	if creds == nil {
		creds = config.NewCredentials(nil, nil)
	}
	artifacts, err := config.ResolvePath(cfg.ArtifactsDir)
	if err != nil {
		return nil, err
	}
	policy := retry.Policy{Attempts: cfg.Retry.Attempts, Initial: cfg.Retry.InitialDelay}

	return &Env{
		Config: cfg,
		Creds:  creds,
		HTTP:   httpapi.New(cfg.HTTPTimeout, policy, log),
		Logger: log,
		Jobs: jobs.Options{
			Interval:    cfg.Polling.Interval,
			MaxAttempts: cfg.Polling.MaxAttempts,
		},
		ArtifactsDir: artifacts,
		MinBytes:     cfg.Polling.MinBytes,
		Now:          time.Now,
	}, nil
}

// BaseURL returns the configured endpoint override for platform, or def.
func (e *Env) BaseURL(platform, def string) string {
	if u := e.Config.Endpoints[platform]; u != "" {
		return strings.TrimRight(u, "/")
	}
	return def
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactPath names a new output file for platform in the artifacts
// directory. A random suffix keeps runs within the same second apart.
func (e *Env) ArtifactPath(platform, stem, ext string) string {
	stem = strings.Trim(unsafeName.ReplaceAllString(stem, "-"), "-")
	if stem == "" {
		stem = "artifact"
	}
	if len(stem) > 48 {
		stem = stem[:48]
	}
	ts := e.Now().UTC().Format("20060102-150405")
	suffix := uuid.NewString()[:8]
	return filepath.Join(e.ArtifactsDir, platform, fmt.Sprintf("%s-%s-%s.%s", ts, stem, suffix, ext))
}

// SaveArtifact writes data to path with the minimum-size check and describes it.
func (e *Env) SaveArtifact(path string, data []byte, contentType string) (Artifact, error) {
	n, err := httpapi.SaveBytes(path, e.MinBytes, data)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Bytes: n, ContentType: contentType}, nil
}
