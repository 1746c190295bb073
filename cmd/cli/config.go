// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ccos/internal/config"
)

// newConfigCmd is the parent command for all configuration-related subcommands
func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ccos configuration",
		Long: heredoc.Doc(`
			Shows and edits the ccos configuration file: output directories,
			retry and polling limits, endpoint overrides, the credentials file
			and publish targets.
		`),
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.out, a.cfgPath)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:               "get <key>",
		Short:             "Print one configuration value",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, v)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value and save the file",
		Example: heredoc.Doc(`
			ccos config set artifacts_dir ~/ccos-artifacts
			ccos config set polling.interval 5s
			ccos config set endpoints.newsapi http://localhost:9000
		`),
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveConfig(a.cfgPath, a.cfg); err != nil {
				return err
			}
			successColor.Fprintf(a.errOut, "%s set to %s\n", args[0], args[1])
			return nil
		},
	})

	return configCmd
}
