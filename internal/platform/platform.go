// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package platform describes the wrapped services: what actions each offers,
// which credentials it needs, and how to open a client for it.
package platform

import (
	"context"
	"fmt"
	"strings"

	"ccos/internal/config"
	"ccos/internal/params"
)

// Credential is one environment variable a platform needs. When AnyOf is set,
// any one of the listed variables satisfies it.
type Credential struct {
	Env      string
	AnyOf    []string
	Optional bool
	Help     string
}

// Names returns the variables that can satisfy the credential.
func (c Credential) Names() []string {
	if len(c.AnyOf) > 0 {
		return c.AnyOf
	}
	return []string{c.Env}
}

// Label renders the credential for listings, e.g. "GEMINI_API_KEY|GOOGLE_API_KEY".
func (c Credential) Label() string {
	label := strings.Join(c.Names(), "|")
	if c.Optional {
		label += " (optional)"
	}
	return label
}

// Satisfied reports whether creds hold a value for the credential.
func (c Credential) Satisfied(creds *config.Credentials) bool {
	if c.Optional {
		return true
	}
	for _, name := range c.Names() {
		if creds.Has(name) {
			return true
		}
	}
	return false
}

// ActionInfo describes one action of a platform.
type ActionInfo struct {
	Name     string
	Summary  string
	Usage    string
	Required []string
	// Credentials are needed by this action in addition to the platform's own.
	Credentials []Credential
	// Async actions submit a remote job and poll it.
	Async bool
}

// Platform executes actions against one remote service.
type Platform interface {
	Execute(ctx context.Context, action string, p params.Params) (*Result, error)
}

// Definition is the registry entry of a platform.
type Definition struct {
	Name        string
	Summary     string
	Credentials []Credential
	Setup       []string
	Actions     []ActionInfo
	Open        func(env *Env) (Platform, error)
}

// Action looks up an action by name.
func (d *Definition) Action(name string) (*ActionInfo, bool) {
	for i := range d.Actions {
		if d.Actions[i].Name == name {
			return &d.Actions[i], true
		}
	}
	return nil, false
}

// ActionNames lists the actions in declaration order.
func (d *Definition) ActionNames() []string {
	names := make([]string, len(d.Actions))
	for i, a := range d.Actions {
		names[i] = a.Name
	}
	return names
}

// Missing returns the unsatisfied credentials for the platform and, when
// action is non-nil, for that action.
func (d *Definition) Missing(creds *config.Credentials, action *ActionInfo) []string {
	required := d.Credentials
	if action != nil {
		required = append(append([]Credential{}, d.Credentials...), action.Credentials...)
	}
	var missing []string
	for _, c := range required {
		if !c.Satisfied(creds) {
			missing = append(missing, strings.Join(c.Names(), " or "))
		}
	}
	return missing
}

// Ready reports whether the platform-level credentials are all present.
func (d *Definition) Ready(creds *config.Credentials) bool {
	return len(d.Missing(creds, nil)) == 0
}

// SetupGuide renders the setup steps and the credentials the platform reads.
func (d *Definition) SetupGuide() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s setup:\n", d.Name)
	for i, step := range d.Setup {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	all := append([]Credential{}, d.Credentials...)
	for _, a := range d.Actions {
		all = append(all, a.Credentials...)
	}
	if len(all) > 0 {
		b.WriteString("Add to your .env file:\n")
		seen := map[string]bool{}
		for _, c := range all {
			if seen[c.Label()] {
				continue
			}
			seen[c.Label()] = true
			if c.Help != "" {
				fmt.Fprintf(&b, "  %s=...   # %s\n", c.Label(), c.Help)
			} else {
				fmt.Fprintf(&b, "  %s=...\n", c.Label())
			}
		}
	}
	return b.String()
}

// UsageText renders the usage line of an action.
func (d *Definition) UsageText(a *ActionInfo) string {
	usage := a.Usage
	if usage == "" {
		usage = strings.Join(a.Required, "=... ")
		if usage != "" {
			usage += "=..."
		}
	}
	return strings.TrimSpace(fmt.Sprintf("ccos %s %s %s", d.Name, a.Name, usage))
}

// Artifact is a file produced by an action.
type Artifact struct {
	Path        string   `json:"path"`
	Bytes       int64    `json:"bytes"`
	ContentType string   `json:"content_type,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	Published   []string `json:"published,omitempty"`
}

// Result is what an action returns to the caller.
type Result struct {
	Platform  string     `json:"platform"`
	Action    string     `json:"action"`
	Data      any        `json:"data,omitempty"`
	Text      string     `json:"text,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// NewResult is a convenience for the common data-only result.
func NewResult(platform, action string, data any) *Result {
	return &Result{Platform: platform, Action: action, Data: data}
}
