// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package platformtest builds platform environments for module tests: static
// credentials, endpoints pointed at httptest servers and waits that return
// immediately.
package platformtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ccos/internal/config"
	"ccos/internal/logger"
	"ccos/internal/params"
	"ccos/internal/platform"
)

// InstantTimer satisfies backoff.Timer without waiting.
type InstantTimer struct{ c chan time.Time }

func NewInstantTimer() *InstantTimer { return &InstantTimer{c: make(chan time.Time, 1)} }

func (t *InstantTimer) Start(time.Duration) { t.c <- time.Time{} }
func (t *InstantTimer) Stop()               {}
func (t *InstantTimer) C() <-chan time.Time { return t.c }

// Env returns an environment whose endpoints point at the given base URLs
// and whose credentials are exactly creds.
func Env(t *testing.T, creds map[string]string, endpoints map[string]string) *platform.Env {
	t.Helper()
	cfg := config.Default()
	cfg.ArtifactsDir = t.TempDir()
	cfg.Endpoints = endpoints
	cfg.Polling.MinBytes = 16

	env, err := platform.NewEnv(cfg, config.NewCredentials(creds, nil), logger.Discard())
	require.NoError(t, err)
	env.HTTP.Policy.Timer = NewInstantTimer()
	env.Jobs.Interval = time.Millisecond
	env.Jobs.MaxAttempts = 5
	env.Jobs.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	env.Now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(env.HTTP.HTTP.CloseIdleConnections)
	return env
}

// Run opens the platform and executes one action, failing the test on open errors.
func Run(t *testing.T, def platform.Definition, env *platform.Env, action string, p params.Params) (*platform.Result, error) {
	t.Helper()
	if p == nil {
		p = params.Params{}
	}
	client, err := def.Open(env)
	require.NoError(t, err)
	return client.Execute(context.Background(), action, p)
}
