// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package platform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/facette/natsort"

	"ccos/internal/apierr"
	"ccos/internal/config"
	"ccos/internal/params"
)

// Module is implemented by every platform package.
type Module interface {
	Register(r *Registry)
}

// Registry maps platform names to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Registering the same name twice is a programming error.
func (r *Registry) Register(d Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Name == "" || d.Open == nil {
		panic("platform: definition needs a name and an Open func")
	}
	if _, exists := r.defs[d.Name]; exists {
		panic(fmt.Sprintf("platform: %q registered twice", d.Name))
	}
	r.defs[d.Name] = &d
}

// Lookup finds a platform by name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the registered platform names in natural order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	natsort.Sort(names)
	return names
}

// Definitions returns every definition ordered by name.
func (r *Registry) Definitions() []*Definition {
	names := r.Names()
	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		d, _ := r.Lookup(name)
		defs = append(defs, d)
	}
	return defs
}

// Prepare validates an invocation before any client is built: the platform
// and action must exist, required parameters must be present and the
// credentials must be configured.
//
// Errors:
//
//   - ccos-error-usage -- unknown platform or action, or a missing parameter
//   - ccos-error-missing-credential -- a required credential is not set
func (r *Registry) Prepare(name, action string, p params.Params, creds *config.Credentials) (*Definition, *ActionInfo, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, nil, apierr.Usage(
			fmt.Sprintf("unknown platform %q", name),
			"available platforms: "+strings.Join(r.Names(), ", "),
		)
	}

	info, ok := def.Action(action)
	if !ok {
		return def, nil, apierr.Usage(
			fmt.Sprintf("unknown action %q for %s", action, name),
			"available actions: "+strings.Join(def.ActionNames(), ", "),
		)
	}

	if missing := p.Missing(info.Required...); len(missing) > 0 {
		return def, info, apierr.Usage(
			fmt.Sprintf("missing required parameter(s): %s", strings.Join(missing, ", ")),
			def.UsageText(info),
		)
	}

	if missing := def.Missing(creds, info); len(missing) > 0 {
		return def, info, apierr.MissingCredential(def.Name, missing, def.SetupGuide())
	}

	return def, info, nil
}
