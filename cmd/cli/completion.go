// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"ccos/internal/config"
)

// completePlatforms suggests registered platform names.
func (a *app) completePlatforms(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, d := range a.registry.Definitions() {
		if strings.HasPrefix(d.Name, toComplete) {
			out = append(out, d.Name+"\t"+d.Summary)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeInvocation completes "<platform> <action> key=value..." positionally:
// platform names, then that platform's actions, then parameter names.
func (a *app) completeInvocation(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return a.completePlatforms(cmd, args, toComplete)
	}
	def, ok := a.registry.Lookup(args[0])
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	if len(args) == 1 {
		var out []string
		for _, act := range def.Actions {
			if strings.HasPrefix(act.Name, toComplete) {
				out = append(out, act.Name+"\t"+act.Summary)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}

	act, ok := def.Action(args[1])
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	given := map[string]bool{}
	for _, arg := range args[2:] {
		if k, _, ok := strings.Cut(arg, "="); ok {
			given[k] = true
		}
	}
	var out []string
	for _, name := range act.Required {
		if !given[name] && strings.HasPrefix(name, toComplete) {
			out = append(out, name+"=")
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func (a *app) completeTargets(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	var out []string
	for _, t := range a.cfg.PublishTargets {
		if strings.HasPrefix(t.Name, toComplete) {
			out = append(out, t.Name+"\t"+t.Type)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func (a *app) completeAgents(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	list, err := a.loadAgents()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, ag := range list {
		if strings.HasPrefix(ag.Name, toComplete) {
			out = append(out, ag.Name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeConfigKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, k := range config.Keys() {
		if strings.HasPrefix(k, toComplete) {
			out = append(out, k)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
