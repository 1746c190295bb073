// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package config handles application configuration: reading and writing the
// YAML config file, defaults for every tunable, and the credential env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RetryConfig tunes the bounded exponential backoff shared by every HTTP call.
type RetryConfig struct {
	Attempts     int           `yaml:"attempts,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
}

// PollingConfig tunes the submit/poll/download job utility.
type PollingConfig struct {
	Interval    time.Duration `yaml:"interval,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	MinBytes    int64         `yaml:"min_bytes,omitempty"`
}

// HistoryConfig controls the sqlite run ledger.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

// PublishTarget describes a destination that generated artifacts can be shipped to.
type PublishTarget struct {
	// Name is the unique identifier used with --publish
	Name string `yaml:"name"`

	// Type is either "s3" or "ssh"
	Type string `yaml:"type"`

	// S3 fields
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`

	// SSH fields. Host may be an alias from ~/.ssh/config, in which case the
	// remaining fields are filled from there when left empty.
	Host      string `yaml:"host,omitempty"`
	Hostname  string `yaml:"hostname,omitempty"`
	User      string `yaml:"user,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	KeyPath   string `yaml:"key_path,omitempty"`
	Password  string `yaml:"password,omitempty"`
	RemoteDir string `yaml:"remote_dir,omitempty"`

	// Disabled targets are dropped at load time
	Disabled bool `yaml:"disabled,omitempty"`
}

// Config represents the top-level application configuration
type Config struct {
	ArtifactsDir   string            `yaml:"artifacts_dir,omitempty"`
	MemoryDir      string            `yaml:"memory_dir,omitempty"`
	AgentsDir      string            `yaml:"agents_dir,omitempty"`
	GmailDir       string            `yaml:"gmail_dir,omitempty"`
	LogLevel       string            `yaml:"log_level,omitempty"`
	HTTPTimeout    time.Duration     `yaml:"http_timeout,omitempty"`
	Retry          RetryConfig       `yaml:"retry,omitempty"`
	Polling        PollingConfig     `yaml:"polling,omitempty"`
	Endpoints      map[string]string `yaml:"endpoints,omitempty"`
	EnvFile        string            `yaml:"env_file,omitempty"`
	History        HistoryConfig     `yaml:"history,omitempty"`
	PublishTargets []PublishTarget   `yaml:"publish_targets,omitempty"`
}

const (
	DefaultRetryAttempts   = 3
	DefaultInitialDelay    = time.Second
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 60
	DefaultMinBytes        = 1024
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultLogLevel        = "warn"
)

// Default returns a configuration with every field set to its default.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ArtifactsDir == "" {
		c.ArtifactsDir = filepath.Join(os.TempDir(), "ccos")
	}
	if c.MemoryDir == "" {
		c.MemoryDir = "~/.claude/intelligence"
	}
	if c.AgentsDir == "" {
		c.AgentsDir = "~/.claude/agents"
	}
	if c.GmailDir == "" {
		c.GmailDir = "~/.claude/gmail"
		if dir, err := os.UserConfigDir(); err == nil {
			c.GmailDir = filepath.Join(dir, "ccos", "gmail")
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = DefaultInitialDelay
	}
	if c.Polling.Interval <= 0 {
		c.Polling.Interval = DefaultPollInterval
	}
	if c.Polling.MaxAttempts <= 0 {
		c.Polling.MaxAttempts = DefaultPollMaxAttempts
	}
	if c.Polling.MinBytes <= 0 {
		c.Polling.MinBytes = DefaultMinBytes
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "ccos", "config.yaml"), nil
}

// LoadConfig reads the config at path, or at the default location when path
// is empty. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.PublishTargets = slices.DeleteFunc(cfg.PublishTargets, func(t PublishTarget) bool {
		return t.Disabled
	})
	cfg.applyDefaults()

	return cfg, nil
}

// SaveConfig writes cfg to path, or to the default location when path is empty.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Publish targets may hold passwords.
	err = os.WriteFile(path, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path, fmt.Errorf("could not get user home directory to resolve path '%s': %w", path, err)
	}

	return filepath.Join(homeDir, path[2:]), nil
}

// Target returns the publish target with the given name.
func (c Config) Target(name string) (PublishTarget, bool) {
	for _, t := range c.PublishTargets {
		if t.Name == name {
			return t, true
		}
	}
	return PublishTarget{}, false
}

// Keys lists the scalar keys accepted by Get and Set.
func Keys() []string {
	return []string{
		"artifacts_dir", "memory_dir", "agents_dir", "gmail_dir", "log_level", "http_timeout",
		"retry.attempts", "retry.initial_delay",
		"polling.interval", "polling.max_attempts", "polling.min_bytes",
		"env_file", "history.disabled", "history.path",
		"endpoints.<platform>",
	}
}

// Get returns the string form of a scalar config key.
func (c Config) Get(key string) (string, error) {
	if name, ok := strings.CutPrefix(key, "endpoints."); ok {
		return c.Endpoints[name], nil
	}
	switch key {
	case "artifacts_dir":
		return c.ArtifactsDir, nil
	case "memory_dir":
		return c.MemoryDir, nil
	case "agents_dir":
		return c.AgentsDir, nil
	case "gmail_dir":
		return c.GmailDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "http_timeout":
		return c.HTTPTimeout.String(), nil
	case "retry.attempts":
		return strconv.Itoa(c.Retry.Attempts), nil
	case "retry.initial_delay":
		return c.Retry.InitialDelay.String(), nil
	case "polling.interval":
		return c.Polling.Interval.String(), nil
	case "polling.max_attempts":
		return strconv.Itoa(c.Polling.MaxAttempts), nil
	case "polling.min_bytes":
		return strconv.FormatInt(c.Polling.MinBytes, 10), nil
	case "env_file":
		return c.EnvFile, nil
	case "history.disabled":
		return strconv.FormatBool(c.History.Disabled), nil
	case "history.path":
		return c.History.Path, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Set parses value and assigns it to a scalar config key.
func (c *Config) Set(key, value string) error {
	if name, ok := strings.CutPrefix(key, "endpoints."); ok && name != "" {
		if c.Endpoints == nil {
			c.Endpoints = make(map[string]string)
		}
		if value == "" {
			delete(c.Endpoints, name)
		} else {
			c.Endpoints[name] = value
		}
		return nil
	}

	var err error
	switch key {
	case "artifacts_dir":
		c.ArtifactsDir = value
	case "memory_dir":
		c.MemoryDir = value
	case "agents_dir":
		c.AgentsDir = value
	case "gmail_dir":
		c.GmailDir = value
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
			c.LogLevel = value
		default:
			err = fmt.Errorf("log_level must be one of debug, info, warn, error")
		}
	case "http_timeout":
		c.HTTPTimeout, err = time.ParseDuration(value)
	case "retry.attempts":
		c.Retry.Attempts, err = strconv.Atoi(value)
	case "retry.initial_delay":
		c.Retry.InitialDelay, err = time.ParseDuration(value)
	case "polling.interval":
		c.Polling.Interval, err = time.ParseDuration(value)
	case "polling.max_attempts":
		c.Polling.MaxAttempts, err = strconv.Atoi(value)
	case "polling.min_bytes":
		c.Polling.MinBytes, err = strconv.ParseInt(value, 10, 64)
	case "env_file":
		c.EnvFile = value
	case "history.disabled":
		c.History.Disabled, err = strconv.ParseBool(value)
	case "history.path":
		c.History.Path = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
