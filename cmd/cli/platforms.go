// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ccos/internal/apierr"
	"ccos/internal/config"
	"ccos/internal/platform"
)

// platformStatus is the JSON shape of "ccos platforms -o json".
type platformStatus struct {
	Name    string   `json:"name"`
	Summary string   `json:"summary"`
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing,omitempty"`
	Actions []string `json:"actions"`
}

func (a *app) newPlatformsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "platforms",
		Aliases: []string{"ls"},
		Short:   "List platforms, their actions and credential readiness",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := a.registry.Definitions()
			if output == outputJSON {
				list := make([]platformStatus, 0, len(defs))
				for _, d := range defs {
					missing := d.Missing(a.creds, nil)
					list = append(list, platformStatus{
						Name:    d.Name,
						Summary: d.Summary,
						Ready:   len(missing) == 0,
						Missing: missing,
						Actions: d.ActionNames(),
					})
				}
				return a.printJSON(list)
			}

			width := 0
			for _, d := range defs {
				width = max(width, len(d.Name))
			}
			for _, d := range defs {
				marker := successColor.Sprint("✓")
				if !d.Ready(a.creds) {
					marker = errorColor.Sprint("✗")
				}
				fmt.Fprintf(a.out, "%s %s  %s\n", marker, identifierColor.Sprintf("%-*s", width, d.Name), d.Summary)
				fmt.Fprintf(a.out, "  %*s  %s\n", width, "", dimColor.Sprint(strings.Join(d.ActionNames(), ", ")))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: json or text")
	return cmd
}

func (a *app) newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "setup [platform...]",
		Short:             "Show setup guides and which credentials are missing",
		ValidArgsFunction: a.completePlatforms,
		RunE: func(cmd *cobra.Command, args []string) error {
			var defs []*platform.Definition
			if len(args) == 0 {
				defs = a.registry.Definitions()
			} else {
				for _, name := range args {
					d, ok := a.registry.Lookup(name)
					if !ok {
						return apierr.Usage(fmt.Sprintf("unknown platform %q", name),
							"available platforms: "+strings.Join(a.registry.Names(), ", "))
					}
					defs = append(defs, d)
				}
			}

			if a.creds.Source != "" {
				dimColor.Fprintf(a.out, "Credentials file: %s\n\n", a.creds.Source)
			} else {
				warnColor.Fprintln(a.out, "No credentials file found; looked in:")
				for _, c := range config.EnvFileCandidates(a.cfg) {
					fmt.Fprintf(a.out, "  %s\n", c)
				}
				fmt.Fprintln(a.out)
			}

			notReady := 0
			for _, d := range defs {
				missing := d.Missing(a.creds, nil)
				if len(missing) == 0 {
					successColor.Fprintf(a.out, "%s: ready\n", d.Name)
					continue
				}
				notReady++
				errorColor.Fprintf(a.out, "%s: missing %s\n", d.Name, strings.Join(missing, ", "))
				fmt.Fprintln(a.out, d.SetupGuide())
			}
			if notReady > 0 {
				return apierr.Config(fmt.Sprintf("%d platform(s) not configured", notReady), nil)
			}
			return nil
		},
	}
}
