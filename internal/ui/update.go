// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/runner"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight-2, 1)
		return m, nil

	case spinner.TickMsg:
		if m.state != stateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runEventMsg:
		m.progress = append(m.progress, describeEvent(msg.event))
		return m, waitForRun(m.events, m.done)

	case runFinishedMsg:
		out := msg.outcome
		m.outcome = &out
		m.events, m.done = nil, nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.state = stateResult
		m.returnTo = stateActionList
		m.viewport.SetContent(renderOutcome(out))
		m.viewport.GotoTop()
		return m, nil

	case historyLoadedMsg:
		m.runs = msg.runs
		m.err = msg.err
		m.viewport.SetContent(renderHistory(m.runs))
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	switch m.state {
	case statePlatformList:
		return m.handlePlatformKeys(msg)
	case stateActionList:
		return m.handleActionKeys(msg)
	case stateParamInput:
		return m.handleInputKeys(msg)
	case stateRunning:
		// A run can only be abandoned as a whole.
		if key.Matches(msg, m.keys.Esc) && m.cancel != nil {
			m.cancel()
		}
		return m, nil
	case stateSetup, stateResult, stateHistory:
		return m.handlePagerKeys(msg)
	}
	return m, nil
}

func (m Model) handlePlatformKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.platforms)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
	case key.Matches(msg, m.keys.End):
		m.cursor = max(len(m.platforms)-1, 0)
	case key.Matches(msg, m.keys.Enter):
		if d := m.selectedPlatform(); d != nil {
			m.current = d
			m.actionCursor = 0
			m.state = stateActionList
		}
	case key.Matches(msg, m.keys.Setup):
		if d := m.selectedPlatform(); d != nil {
			m.current = d
			return m.showSetup(), nil
		}
	case key.Matches(msg, m.keys.History):
		m.current = nil
		m.returnTo = m.state
		m.state = stateHistory
		return m, loadHistory(m.runner, "")
	}
	return m, nil
}

func (m Model) handleActionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.current = nil
		m.state = statePlatformList
	case key.Matches(msg, m.keys.Up):
		if m.actionCursor > 0 {
			m.actionCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.actionCursor < len(m.current.Actions)-1 {
			m.actionCursor++
		}
	case key.Matches(msg, m.keys.Setup):
		return m.showSetup(), nil
	case key.Matches(msg, m.keys.History):
		m.returnTo = m.state
		m.state = stateHistory
		return m, loadHistory(m.runner, m.current.Name)
	case key.Matches(msg, m.keys.Enter):
		a := m.selectedAction()
		if a == nil {
			return m, nil
		}
		m.action = a
		m.err = nil
		m.input.Reset()
		m.state = stateParamInput
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Esc):
		m.input.Blur()
		m.err = nil
		m.state = stateActionList
		return m, nil
	case key.Matches(msg, m.keys.Run):
		p, err := params.Parse([]string{m.input.Value()})
		if err != nil {
			m.err = err
			return m, nil
		}
		m.input.Blur()
		return m.startRun(p)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handlePagerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.err = nil
		m.state = m.returnTo
		if m.state == statePlatformList {
			m.current = nil
		}
		return m, nil
	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) showSetup() Model {
	m.returnTo = m.state
	m.state = stateSetup
	m.viewport.SetContent(m.current.SetupGuide())
	m.viewport.GotoTop()
	return m
}

func (m Model) startRun(p params.Params) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.progress = nil
	m.outcome = nil
	m.state = stateRunning
	m.events, m.done = m.runner.Stream(ctx, runner.Invocation{
		Platform: m.current.Name,
		Action:   m.action.Name,
		Params:   p,
	})
	return m, tea.Batch(m.spinner.Tick, waitForRun(m.events, m.done))
}

func describeEvent(ev jobs.Event) string {
	switch ev.Kind {
	case jobs.EventSubmitted:
		return fmt.Sprintf("submitted job %s", ev.ID)
	case jobs.EventPolled:
		line := fmt.Sprintf("poll %d: %s", ev.Attempt, ev.Status.State)
		if ev.Status.Progress > 0 {
			line += fmt.Sprintf(" (%.0f%%)", ev.Status.Progress*100)
		}
		return line
	case jobs.EventFetched:
		return fmt.Sprintf("downloaded output of %s", ev.ID)
	}
	return ""
}
