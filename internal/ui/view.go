// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"ccos/internal/apierr"
	"ccos/internal/history"
	"ccos/internal/runner"
)

func (m Model) View() string {
	var body, footer string
	switch m.state {
	case statePlatformList:
		body, footer = m.renderPlatformList()
	case stateActionList:
		body, footer = m.renderActionList()
	case stateParamInput:
		body, footer = m.renderParamInput()
	case stateRunning:
		body, footer = m.renderRunning()
	case stateSetup:
		body, footer = m.renderPager(m.current.Name+" setup", m.keys.Back, m.keys.PgUp, m.keys.PgDown)
	case stateResult:
		body, footer = m.renderPager(m.outcomeTitle(), m.keys.Back, m.keys.PgUp, m.keys.PgDown, m.keys.Quit)
	case stateHistory:
		title := "history"
		if m.current != nil {
			title = m.current.Name + " history"
		}
		body, footer = m.renderPager(title, m.keys.Back, m.keys.Quit)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

// These functions generate the body and footer content for specific UI states.

func (m Model) renderPlatformList() (string, string) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ccos platforms") + "\n\n")

	creds := m.runner.Env.Creds
	width := 0
	for _, d := range m.platforms {
		width = max(width, len(d.Name))
	}
	for i, d := range m.platforms {
		cursor := "  "
		if m.cursor == i {
			cursor = cursorStyle.Render("> ")
		}
		marker := readyStyle.Render("●")
		if !d.Ready(creds) {
			marker = missingStyle.Render("○")
		}
		fmt.Fprintf(&b, "%s%s %-*s  %s\n", cursor, marker, width, d.Name, dimStyle.Render(d.Summary))
	}
	return b.String(), m.helpLine(m.keys.Up, m.keys.Down, m.keys.Enter, m.keys.Setup, m.keys.History, m.keys.Quit)
}

func (m Model) renderActionList() (string, string) {
	d := m.current
	creds := m.runner.Env.Creds

	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Name) + "  " + dimStyle.Render(d.Summary) + "\n\n")
	for i := range d.Actions {
		a := &d.Actions[i]
		cursor := "  "
		if m.actionCursor == i {
			cursor = cursorStyle.Render("> ")
		}
		line := cursor + a.Name
		if a.Async {
			line += " " + asyncBadge.String()
		}
		if a.Summary != "" {
			line += "  " + dimStyle.Render(a.Summary)
		}
		b.WriteString(line + "\n")
	}

	if a := m.selectedAction(); a != nil {
		b.WriteString("\n" + usageStyle.Render(d.UsageText(a)) + "\n")
		if missing := d.Missing(creds, a); len(missing) > 0 {
			b.WriteString(missingStyle.Render("missing: "+strings.Join(missing, ", ")) + "\n")
		} else {
			b.WriteString(readyStyle.Render("credentials ready") + "\n")
		}
	}
	return b.String(), m.helpLine(m.keys.Up, m.keys.Down, m.keys.Run, m.keys.Setup, m.keys.History, m.keys.Back)
}

func (m Model) renderParamInput() (string, string) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.current.Name+" "+m.action.Name) + "\n\n")
	b.WriteString(usageStyle.Render(m.current.UsageText(m.action)) + "\n\n")
	b.WriteString(m.input.View() + "\n")
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	return b.String(), m.helpLine(m.keys.Run, m.keys.Esc)
}

func (m Model) renderRunning() (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), statusStyle.Render("Running "+m.current.Name+" "+m.action.Name+"..."))
	for _, line := range m.progress {
		b.WriteString("  " + dimStyle.Render(line) + "\n")
	}
	return b.String(), m.helpLine(m.keys.Esc)
}

func (m Model) renderPager(title string, bindings ...key.Binding) (string, string) {
	header := titleStyle.Render(title)
	if m.err != nil {
		header += "\n" + errorStyle.Render(m.err.Error())
	}
	return header + "\n" + mainContentBox.Render(m.viewport.View()), m.helpLine(bindings...)
}

func (m Model) outcomeTitle() string {
	if m.outcome == nil {
		return "result"
	}
	if m.outcome.Err != nil {
		return errorStyle.Render(m.outcome.Invocation.String() + " failed")
	}
	return successStyle.Render(m.outcome.Invocation.String() + " succeeded")
}

func (m Model) helpLine(bindings ...key.Binding) string {
	sep := footerSeparatorStyle.Render(" | ")
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, footerKeyStyle.Render(h.Key)+footerDescStyle.Render(": "+h.Desc))
	}
	return "\n" + lipgloss.NewStyle().Width(m.width).Render(strings.Join(parts, sep))
}

func renderOutcome(out runner.Outcome) string {
	var b strings.Builder
	if out.Err != nil {
		fmt.Fprintf(&b, "Error [%s]: %v\n", apierr.Code(out.Err), out.Err)
		if guide := apierr.SetupGuide(out.Err); guide != "" {
			b.WriteString("\n" + guide)
		}
		if usage := apierr.Detail(out.Err, "usage"); usage != "" {
			b.WriteString("\nUsage: " + usage + "\n")
		}
		return b.String()
	}

	res := out.Result
	if res == nil {
		return "done\n"
	}
	if res.Text != "" {
		b.WriteString(res.Text + "\n\n")
	}
	for _, a := range res.Artifacts {
		fmt.Fprintf(&b, "artifact %s (%d bytes)\n", a.Path, a.Bytes)
		for _, p := range a.Published {
			fmt.Fprintf(&b, "  published %s\n", p)
		}
	}
	if res.Data != nil {
		data, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			fmt.Fprintf(&b, "%v\n", res.Data)
		} else {
			b.Write(data)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderHistory(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded yet.\n"
	}
	var b strings.Builder
	for _, r := range runs {
		status := successStyle.Render(r.Status)
		if r.ErrorCode != "" {
			status = errorStyle.Render(r.Status + " " + r.ErrorCode)
		}
		fmt.Fprintf(&b, "%s  %-12s %-18s %s  %dms\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Platform, r.Action, status, r.DurationMS)
	}
	return b.String()
}
