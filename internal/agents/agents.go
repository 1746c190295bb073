// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package agents ships the persona documents that teach an LLM coding
// assistant how to drive ccos, and installs them into its agents directory.
package agents

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/facette/natsort"
	"gopkg.in/yaml.v3"

	"ccos/internal/apierr"
)

//go:embed personas/*.md
var embedded embed.FS

// SourceEmbedded marks agents that ship inside the binary.
const SourceEmbedded = "embedded"

// Agent is one persona document.
type Agent struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tools       []string `yaml:"tools" json:"tools,omitempty"`
	Platforms   []string `yaml:"platforms" json:"platforms,omitempty"`

	Body   string `yaml:"-" json:"-"`
	Raw    []byte `yaml:"-" json:"-"`
	Source string `yaml:"-" json:"source"`
}

var delim = []byte("---")

// Parse reads a markdown document with optional YAML frontmatter. fallback
// names the agent when the frontmatter does not.
func Parse(data []byte, fallback string) (Agent, error) {
	a := Agent{Name: fallback, Raw: data}
	body := data

	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))
	if bytes.HasPrefix(trimmed, delim) {
		rest := trimmed[len(delim):]
		end := bytes.Index(rest, []byte("\n---"))
		if end < 0 {
			return Agent{}, fmt.Errorf("agent %s: unterminated frontmatter", fallback)
		}
		if err := yaml.Unmarshal(rest[:end], &a); err != nil {
			return Agent{}, fmt.Errorf("agent %s: invalid frontmatter: %w", fallback, err)
		}
		body = rest[end+len("\n---"):]
	}
	if a.Name == "" {
		a.Name = fallback
	}
	a.Body = strings.TrimSpace(string(body))
	return a, nil
}

// Embedded returns the built-in agents in natural order.
func Embedded() ([]Agent, error) {
	entries, err := fs.ReadDir(embedded, "personas")
	if err != nil {
		return nil, err
	}
	var out []Agent
	for _, e := range entries {
		data, err := embedded.ReadFile("personas/" + e.Name())
		if err != nil {
			return nil, err
		}
		a, err := Parse(data, strings.TrimSuffix(e.Name(), ".md"))
		if err != nil {
			return nil, err
		}
		a.Source = SourceEmbedded
		out = append(out, a)
	}
	sortAgents(out)
	return out, nil
}

// Load returns the embedded agents overlaid by any *.md files in userDir.
// A user file whose name matches an embedded agent replaces it. A missing
// userDir is not an error.
func Load(userDir string) ([]Agent, error) {
	builtin, err := Embedded()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Agent, len(builtin))
	for _, a := range builtin {
		byName[a.Name] = a
	}

	if userDir != "" {
		matches, err := filepath.Glob(filepath.Join(userDir, "*.md"))
		if err != nil {
			return nil, err
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, apierr.IO("could not read agent", path, err)
			}
			a, err := Parse(data, strings.TrimSuffix(filepath.Base(path), ".md"))
			if err != nil {
				return nil, err
			}
			a.Source = path
			byName[a.Name] = a
		}
	}

	out := make([]Agent, 0, len(byName))
	for _, a := range byName {
		out = append(out, a)
	}
	sortAgents(out)
	return out, nil
}

func sortAgents(list []Agent) {
	sort.Slice(list, func(i, j int) bool { return natsort.Compare(list[i].Name, list[j].Name) })
}

// Find returns the agent called name.
func Find(list []Agent, name string) (Agent, bool) {
	for _, a := range list {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Render formats the agent for a terminal. style is a glamour standard style
// name ("dark", "light", "notty"); empty picks one from the terminal.
func Render(a Agent, width int, style string) (string, error) {
	if width <= 0 {
		width = 80
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}

	var doc strings.Builder
	fmt.Fprintf(&doc, "**%s** · %s\n\n", a.Name, a.Description)
	if len(a.Platforms) > 0 {
		fmt.Fprintf(&doc, "Platforms: `%s`\n\n", strings.Join(a.Platforms, "`, `"))
	}
	doc.WriteString(a.Body)
	return r.Render(doc.String())
}

// InstallResult lists what Install did.
type InstallResult struct {
	Written []string
	Skipped []string
}

// Install copies the embedded agents into destDir. Existing files are left
// alone unless overwrite is set.
func Install(destDir string, overwrite bool) (InstallResult, error) {
	var res InstallResult
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return res, apierr.IO("could not create agents directory", destDir, err)
	}
	list, err := Embedded()
	if err != nil {
		return res, err
	}
	for _, a := range list {
		dest := filepath.Join(destDir, a.Name+".md")
		if _, err := os.Stat(dest); err == nil && !overwrite {
			res.Skipped = append(res.Skipped, dest)
			continue
		}
		if err := os.WriteFile(dest, a.Raw, 0644); err != nil {
			return res, apierr.IO("could not write agent", dest, err)
		}
		res.Written = append(res.Written, dest)
	}
	return res, nil
}
