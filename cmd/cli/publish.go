// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccos/internal/apierr"
)

func (a *app) newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "publish <target> <file...>",
		Short:             "Ship local files to a configured S3 or SSH publish target",
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: a.completeTargets,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := a.runner.Publishers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var failed int
			for _, file := range args[1:] {
				loc, err := pub.Publish(cmd.Context(), file)
				if err != nil {
					failed++
					errorColor.Fprintf(a.errOut, "%s: %v\n", file, err)
					continue
				}
				fmt.Fprintln(a.out, loc)
			}
			if failed > 0 {
				return apierr.Publish(args[0], fmt.Errorf("%d of %d file(s) failed", failed, len(args)-1))
			}
			return nil
		},
	}
}
