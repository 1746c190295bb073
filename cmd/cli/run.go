// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"ccos/internal/apierr"
	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/runner"
)

const (
	outputJSON = "json"
	outputText = "text"
)

type runOptions struct {
	output   string
	publish  string
	noMemory bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", outputJSON, "output format: json or text")
	cmd.Flags().StringVar(&o.publish, "publish", "", "publish produced artifacts to this target")
	cmd.Flags().BoolVar(&o.noMemory, "no-memory", false, "do not write an intelligence-memory record")
	_ = cmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions([]string{outputJSON, outputText}, cobra.ShellCompDirectiveNoFileComp))
}

func (o runOptions) validate() error {
	if o.output != outputJSON && o.output != outputText {
		return apierr.Usage(fmt.Sprintf("unknown output format %q", o.output), "--output json|text")
	}
	return nil
}

func (a *app) newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <platform> <action> [key=value...]",
		Short: "Run one platform action",
		Example: heredoc.Doc(`
			ccos run newsapi headlines "country=us&category=technology"
			ccos run elevenlabs tts text="Hello there" --publish media
		`),
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: a.completeInvocation,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd.Context(), args[0], args[1], args[2:], opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// newPlatformCmd exposes one registered platform as "ccos <platform> <action>".
func (a *app) newPlatformCmd(def *platform.Definition) *cobra.Command {
	var opts runOptions

	var long strings.Builder
	long.WriteString(def.Summary + "\n\nActions:\n")
	for i := range def.Actions {
		act := &def.Actions[i]
		fmt.Fprintf(&long, "  %-20s %s\n", act.Name, act.Summary)
		fmt.Fprintf(&long, "  %-20s %s\n", "", def.UsageText(act))
	}

	cmd := &cobra.Command{
		Use:     def.Name + " <action> [key=value...]",
		Short:   def.Summary,
		Long:    long.String(),
		GroupID: groupPlatforms,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return a.completeInvocation(cmd, append([]string{def.Name}, args...), toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return apierr.Usage("missing action for "+def.Name,
					fmt.Sprintf("ccos %s <%s> [key=value...]", def.Name, strings.Join(def.ActionNames(), "|")))
			}
			return a.invoke(cmd.Context(), def.Name, args[0], args[1:], opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func (a *app) invoke(ctx context.Context, platformName, action string, raw []string, opts runOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	p, err := params.Parse(raw)
	if err != nil {
		return err
	}
	inv := runner.Invocation{
		Platform:   platformName,
		Action:     action,
		Params:     p,
		Publish:    opts.publish,
		SkipMemory: opts.noMemory,
	}

	res, err := a.runInvocation(ctx, inv)
	if err != nil {
		return err
	}
	return a.printResult(res, opts.output)
}

// runInvocation runs inv, drawing a spinner while an async job is polled.
func (a *app) runInvocation(ctx context.Context, inv runner.Invocation) (*platform.Result, error) {
	def, ok := a.registry.Lookup(inv.Platform)
	if !ok || !a.interactive() {
		return a.runner.Run(ctx, inv)
	}
	if info, ok := def.Action(inv.Action); !ok || !info.Async {
		return a.runner.Run(ctx, inv)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.errOut))
	s.Color("cyan")
	s.Suffix = fmt.Sprintf(" Running %s...", inv)
	s.Start()
	defer s.Stop()

	events, done := a.runner.Stream(ctx, inv)
	for ev := range events {
		s.Suffix = " " + describeEvent(inv, ev)
	}
	out := <-done
	return out.Result, out.Err
}

func describeEvent(inv runner.Invocation, ev jobs.Event) string {
	switch ev.Kind {
	case jobs.EventSubmitted:
		return fmt.Sprintf("%s: submitted job %s", inv, ev.ID)
	case jobs.EventPolled:
		if ev.Status.Progress > 0 {
			return fmt.Sprintf("%s: %s (%.0f%%), check %d", inv, ev.Status.State, ev.Status.Progress*100, ev.Attempt)
		}
		return fmt.Sprintf("%s: %s, check %d", inv, ev.Status.State, ev.Attempt)
	case jobs.EventFetched:
		return fmt.Sprintf("%s: downloading", inv)
	}
	return inv.String()
}

func (a *app) printResult(res *platform.Result, output string) error {
	if output == outputText && (res.Text != "" || len(res.Artifacts) > 0) {
		if res.Text != "" {
			fmt.Fprintln(a.out, res.Text)
		}
		for _, art := range res.Artifacts {
			fmt.Fprintln(a.out, art.Path)
			for _, loc := range art.Published {
				fmt.Fprintln(a.out, loc)
			}
		}
		return nil
	}
	return a.printJSON(res)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
