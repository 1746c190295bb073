// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccos/internal/apierr"
	"ccos/internal/history"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var filter history.Filter
	var output string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.runner.History == nil {
				return apierr.Config("run history is disabled or unavailable", nil)
			}
			runs, err := a.runner.History.Recent(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output == outputJSON {
				if runs == nil {
					runs = []history.Run{}
				}
				return a.printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				status := successColor.Sprint(r.Status)
				if r.ErrorCode != "" {
					status = errorColor.Sprintf("%s %s", r.Status, r.ErrorCode)
				}
				fmt.Fprintf(a.out, "%s  %-12s %-20s %s %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Platform, r.Action, status,
					dimColor.Sprintf("%dms", r.DurationMS))
				for _, p := range r.Artifacts {
					fmt.Fprintf(a.out, "    %s\n", p)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Platform, "platform", "", "only show runs of this platform")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of runs")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: json or text")
	_ = cmd.RegisterFlagCompletionFunc("platform", a.completePlatforms)
	return cmd
}
