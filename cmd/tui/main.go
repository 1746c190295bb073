// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"ccos/internal/runner"
	"ccos/internal/ui"
)

// RunTUI runs the platform browser over r until the user quits.
func RunTUI(r *runner.Runner) error {
	p := tea.NewProgram(ui.NewModel(r), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
