// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package cli is the ccos command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ccos/cmd/tui"
	"ccos/internal/apierr"
)

var (
	statusColor     = color.New(color.FgCyan)
	errorColor      = color.New(color.FgRed)
	successColor    = color.New(color.FgGreen)
	warnColor       = color.New(color.FgYellow)
	identifierColor = color.New(color.FgBlue)
	dimColor        = color.New(color.Faint)
)

const groupPlatforms = "platforms"

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ccos",
		Short: "Command-line toolkit over marketing, analytics and content APIs",
		Long: heredoc.Doc(`
			ccos wraps marketing, analytics, fundraising and content-generation
			services behind one calling convention:

			  ccos <platform> <action> key=value&key2=value2
			  ccos <platform> <action> key=value key2=value2

			Credentials are read from an env file (see "ccos setup") and the
			process environment. Results are printed as JSON on stdout,
			diagnostics go to stderr. Run without arguments for the interactive
			browser.
		`),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bootstrap(cmd, cmd.Parent() == nil && len(args) == 0)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunTUI(a.runner)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is <user config dir>/ccos/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.traceFile, "trace-file", "", "write OpenTelemetry spans to this file")

	root.AddGroup(&cobra.Group{ID: groupPlatforms, Title: "Platforms:"})
	root.AddCommand(
		a.newRunCmd(),
		a.newPlatformsCmd(),
		a.newSetupCmd(),
		a.newConfigCmd(),
		a.newAgentsCmd(),
		a.newHistoryCmd(),
		a.newPublishCmd(),
		a.newBatchCmd(),
		a.newServeCmd(),
	)
	for _, def := range a.registry.Definitions() {
		root.AddCommand(a.newPlatformCmd(def))
	}
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).execute(context.Background(), args)
}

// RunCLI is the binary entry point.
func RunCLI() {
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}

func (a *app) execute(ctx context.Context, args []string) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		a.reportError(err)
	}
	return apierr.ExitCode(err)
}

func (a *app) reportError(err error) {
	errorColor.Fprintf(a.errOut, "Error: %v\n", err)
	if guide := apierr.SetupGuide(err); guide != "" {
		fmt.Fprintln(a.errOut)
		fmt.Fprint(a.errOut, guide)
	}
	if apierr.Is(err, apierr.CodeUsage) {
		if usage := apierr.Detail(err, "usage"); usage != "" {
			dimColor.Fprintf(a.errOut, "Usage: %s\n", usage)
		}
	}
}
