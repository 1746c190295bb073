// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package ui is the interactive platform browser: pick a platform, read its
// setup guide, run an action and watch async jobs progress.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ccos/internal/history"
	"ccos/internal/jobs"
	"ccos/internal/platform"
	"ccos/internal/runner"
)

// Model holds the browser state.
type Model struct {
	runner    *runner.Runner
	platforms []*platform.Definition
	keys      KeyMap

	state        state
	returnTo     state
	cursor       int
	actionCursor int
	current      *platform.Definition
	action       *platform.ActionInfo

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	progress []string
	outcome  *runner.Outcome
	runs     []history.Run
	events   <-chan jobs.Event
	done     <-chan runner.Outcome
	cancel   context.CancelFunc

	width  int
	height int
	err    error
}

// NewModel builds the browser over the runner's registry.
func NewModel(r *runner.Runner) Model {
	ti := textinput.New()
	ti.Placeholder = "key=value&key2=value2"
	ti.CharLimit = 1024
	ti.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	return Model{
		runner:    r,
		platforms: r.Registry.Definitions(),
		keys:      DefaultKeyMap,
		state:     statePlatformList,
		input:     ti,
		spinner:   s,
		viewport:  viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) selectedPlatform() *platform.Definition {
	if m.cursor < 0 || m.cursor >= len(m.platforms) {
		return nil
	}
	return m.platforms[m.cursor]
}

func (m Model) selectedAction() *platform.ActionInfo {
	if m.current == nil || m.actionCursor < 0 || m.actionCursor >= len(m.current.Actions) {
		return nil
	}
	return &m.current.Actions[m.actionCursor]
}

// waitForRun delivers the next job event, or the outcome once the event
// channel is drained.
func waitForRun(events <-chan jobs.Event, done <-chan runner.Outcome) tea.Cmd {
	return func() tea.Msg {
		if ev, ok := <-events; ok {
			return runEventMsg{event: ev}
		}
		return runFinishedMsg{outcome: <-done}
	}
}

func loadHistory(r *runner.Runner, platformName string) tea.Cmd {
	return func() tea.Msg {
		if r.History == nil {
			return historyLoadedMsg{}
		}
		runs, err := r.History.Recent(context.Background(), history.Filter{Platform: platformName, Limit: historyLimit})
		return historyLoadedMsg{runs: runs, err: err}
	}
}
