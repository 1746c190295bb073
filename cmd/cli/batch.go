// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ccos/internal/apierr"
	"ccos/internal/platform"
	"ccos/internal/runner"
)

// batchResult is the JSON shape of one batch outcome.
type batchResult struct {
	Platform string           `json:"platform"`
	Action   string           `json:"action"`
	ID       string           `json:"id,omitempty"`
	Result   *platform.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Code     string           `json:"code,omitempty"`
}

func readBatch(path string) ([]runner.Invocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierr.IO("could not read batch file", path, err)
	}
	var invs []runner.Invocation
	if err := yaml.Unmarshal(data, &invs); err != nil {
		return nil, apierr.Config("invalid batch file "+path, err)
	}
	if len(invs) == 0 {
		return nil, apierr.Config("batch file "+path+" lists no invocations", nil)
	}
	return invs, nil
}

func (a *app) newBatchCmd() *cobra.Command {
	var parallel int
	var output, publish string
	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Run a list of invocations from a YAML file",
		Long: heredoc.Doc(`
			Runs every invocation listed in the file, at most --parallel at a
			time. A failing invocation does not stop the others; the command
			exits non-zero if any of them failed.

			  - platform: newsapi
			    action: headlines
			    params: {country: us, category: technology}
			  - platform: elevenlabs
			    action: tts
			    params: {text: "Weekly update"}
			    publish: media
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputJSON && output != outputText {
				return apierr.Usage(fmt.Sprintf("unknown output format %q", output), "--output json|text")
			}
			invs, err := readBatch(args[0])
			if err != nil {
				return err
			}
			if publish != "" {
				for i := range invs {
					if invs[i].Publish == "" {
						invs[i].Publish = publish
					}
				}
			}

			outcomes := a.runner.RunBatch(cmd.Context(), invs, parallel)

			failed := 0
			results := make([]batchResult, 0, len(outcomes))
			for _, o := range outcomes {
				br := batchResult{Platform: o.Invocation.Platform, Action: o.Invocation.Action, ID: o.ID, Result: o.Result}
				if o.Err != nil {
					failed++
					br.Error = o.Err.Error()
					br.Code = apierr.Code(o.Err)
				}
				results = append(results, br)
				if output == outputText {
					if o.Err != nil {
						errorColor.Fprintln(a.out, o.Summary())
					} else {
						successColor.Fprintln(a.out, o.Summary())
					}
				}
			}
			if output == outputJSON {
				if err := a.printJSON(results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d invocation(s) failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "maximum invocations in flight")
	cmd.Flags().StringVar(&publish, "publish", "", "default publish target for invocations that name none")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: json or text")
	return cmd
}
