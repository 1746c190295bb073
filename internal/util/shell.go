// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package util

import (
	"path"
	"strings"
)

// QuoteArgForShell quotes an argument for safe use in a POSIX shell command.
// A leading "~/" is left outside the quotes so the remote shell still expands it.
func QuoteArgForShell(arg string) string {
	if strings.HasPrefix(arg, "~/") {
		return `~/'` + strings.ReplaceAll(arg[2:], "'", `'\''`) + `'`
	}
	return `'` + strings.ReplaceAll(arg, "'", `'\''`) + `'`
}

// UploadCommand is the remote command that receives a file on stdin and
// writes it to dir/name, creating dir first.
func UploadCommand(dir, name string) string {
	if dir == "" {
		dir = "."
	}
	target := path.Join(dir, path.Base(name))
	return "mkdir -p " + QuoteArgForShell(dir) + " && cat > " + QuoteArgForShell(target)
}
