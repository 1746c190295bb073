// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package ui

// state represents the different views of the TUI.
type state int

const (
	statePlatformList state = iota
	stateActionList
	stateSetup
	stateParamInput
	stateRunning
	stateResult
	stateHistory
)

const (
	headerHeight = 2
	footerHeight = 2
	historyLimit = 50
)
