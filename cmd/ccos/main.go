// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package main

import "ccos/cmd/cli"

// Without arguments the root command opens the TUI; otherwise the
// arguments select a CLI command.
func main() {
	cli.RunCLI()
}
