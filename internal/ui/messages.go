// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package ui

import (
	"ccos/internal/history"
	"ccos/internal/jobs"
	"ccos/internal/runner"
)

// Job progress of the running invocation.
type runEventMsg struct{ event jobs.Event }

// The running invocation finished.
type runFinishedMsg struct{ outcome runner.Outcome }

type historyLoadedMsg struct {
	runs []history.Run
	err  error
}
