// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"ccos/internal/config"
	"ccos/internal/history"
	"ccos/internal/logger"
	"ccos/internal/memory"
	"ccos/internal/platform"
	"ccos/internal/runner"
	"ccos/internal/tracing"
	"ccos/modules"
)

// app carries the state shared by every command of one execution.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	traceFile  string

	registry *platform.Registry
	cfgPath  string
	cfg      config.Config
	creds    *config.Credentials
	runner   *runner.Runner
	tracer   *sdktrace.TracerProvider

	// Overridable so tests never read the real environment or log file.
	loadCredentials func(config.Config) (*config.Credentials, error)
	log             *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		out:             stdout,
		errOut:          stderr,
		registry:        modules.All(),
		loadCredentials: config.LoadCredentials,
	}
}

// bootstrap builds the configuration, credentials and runner once the flags
// are parsed.
func (a *app) bootstrap(cmd *cobra.Command, isTUI bool) error {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	a.cfgPath, a.cfg = path, cfg

	log := a.log
	if log == nil {
		lvl := cfg.LogLevel
		if a.logLevel != "" {
			lvl = a.logLevel
		}
		logger.InitLogger(isTUI, lvl)
		log = logger.Get()
	}

	creds, err := a.loadCredentials(cfg)
	if err != nil {
		return err
	}
	a.creds = creds
	if creds.Source != "" {
		log.Debug("Loaded credentials", "file", creds.Source)
	}

	env, err := platform.NewEnv(cfg, creds, log)
	if err != nil {
		return err
	}
	r := runner.New(a.registry, env)

	if memDir, err := config.ResolvePath(cfg.MemoryDir); err == nil && cfg.MemoryDir != "" {
		r.Memory = memory.NewStore(memDir)
	}
	if !cfg.History.Disabled {
		if store, err := openHistory(cfg); err != nil {
			log.Warn("Run history unavailable", "error", err)
		} else {
			r.History = store
		}
	}
	a.runner = r

	if a.traceFile != "" {
		tp, err := tracing.NewFileProvider(a.traceFile)
		if err != nil {
			return err
		}
		a.tracer = tp
		cmd.SetContext(tracing.SetTracer(cmd.Context(), tp.Tracer("ccos")))
	}
	return nil
}

func openHistory(cfg config.Config) (*history.Store, error) {
	path := cfg.History.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	return history.Open(resolved)
}

func (a *app) close() {
	if a.runner != nil {
		if err := a.runner.Close(); err != nil {
			logger.Warn("Failed to close runner", "error", err)
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}
}

// interactive reports whether progress decorations can be drawn on stderr.
func (a *app) interactive() bool {
	f, ok := a.errOut.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
