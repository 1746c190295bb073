// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccos/internal/agents"
	"ccos/internal/apierr"
	"ccos/internal/config"
)

func (a *app) loadAgents() ([]agents.Agent, error) {
	dir, err := config.ResolvePath(a.cfg.AgentsDir)
	if err != nil {
		return nil, err
	}
	return agents.Load(dir)
}

func (a *app) newAgentsCmd() *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "List, show and install the agent persona documents",
	}

	agentsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.loadAgents()
			if err != nil {
				return err
			}
			width := 0
			for _, ag := range list {
				width = max(width, len(ag.Name))
			}
			for _, ag := range list {
				fmt.Fprintf(a.out, "%-*s  %s", width, ag.Name, ag.Description)
				if ag.Source != agents.SourceEmbedded {
					fmt.Fprint(a.out, dimColor.Sprintf("  (%s)", ag.Source))
				}
				fmt.Fprintln(a.out)
			}
			return nil
		},
	})

	var raw bool
	showCmd := &cobra.Command{
		Use:               "show <name>",
		Short:             "Render one agent document",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeAgents,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.loadAgents()
			if err != nil {
				return err
			}
			ag, ok := agents.Find(list, args[0])
			if !ok {
				return apierr.Usage(fmt.Sprintf("unknown agent %q", args[0]), "ccos agents list")
			}
			if raw {
				_, err := a.out.Write(ag.Raw)
				return err
			}
			style := ""
			if !a.interactive() {
				style = "notty"
			}
			out, err := agents.Render(ag, 100, style)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, out)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&raw, "raw", false, "print the markdown source")
	agentsCmd.AddCommand(showCmd)

	var dir string
	var force bool
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Copy the built-in agents into the assistant's agents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.AgentsDir
			}
			dest, err := config.ResolvePath(dir)
			if err != nil {
				return err
			}
			res, err := agents.Install(dest, force)
			if err != nil {
				return err
			}
			for _, p := range res.Written {
				successColor.Fprintf(a.out, "installed %s\n", p)
			}
			for _, p := range res.Skipped {
				dimColor.Fprintf(a.out, "skipped %s (exists, use --force)\n", p)
			}
			return nil
		},
	}
	installCmd.Flags().StringVar(&dir, "dir", "", "destination directory (default is agents_dir from config)")
	installCmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	agentsCmd.AddCommand(installCmd)

	return agentsCmd
}
