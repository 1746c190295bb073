// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials resolves API keys. Values from the process environment win over
// values read from the env file.
type Credentials struct {
	file   map[string]string
	lookup func(string) (string, bool)

	// Source is the env file the values were read from, or "" if none was found.
	Source string
}

// NewCredentials builds a credential set from file values and an environment
// lookup. A nil lookup means file values only.
func NewCredentials(file map[string]string, lookup func(string) (string, bool)) *Credentials {
	if file == nil {
		file = map[string]string{}
	}
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Credentials{file: file, lookup: lookup}
}

// Get returns the value for key, or "" when unset.
func (c *Credentials) Get(key string) string {
	if v, ok := c.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.file[key])
}

// Has reports whether key resolves to a non-empty value.
func (c *Credentials) Has(key string) bool {
	return c.Get(key) != ""
}

// Missing returns the subset of keys that are not set.
func (c *Credentials) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if !c.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// EnvFileCandidates returns the env file search path in priority order.
func EnvFileCandidates(cfg Config) []string {
	var candidates []string
	if cfg.EnvFile != "" {
		candidates = append(candidates, cfg.EnvFile)
	}
	if p := os.Getenv("CCOS_ENV_FILE"); p != "" {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, ".env")
	if configDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(configDir, "ccos", ".env"))
	}
	candidates = append(candidates, "~/.claude/.env")
	return candidates
}

// LoadCredentials reads the first env file that exists on the search path and
// overlays the process environment.
func LoadCredentials(cfg Config) (*Credentials, error) {
	for _, candidate := range EnvFileCandidates(cfg) {
		path, err := ResolvePath(candidate)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
		}
		creds := NewCredentials(values, os.LookupEnv)
		creds.Source = path
		return creds, nil
	}
	return NewCredentials(nil, os.LookupEnv), nil
}
