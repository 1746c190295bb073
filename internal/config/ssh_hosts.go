// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kevinburke/ssh_config"
)

func DefaultSSHConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ssh", "config"), nil
}

// ResolveSSHTarget fills the empty connection fields of an ssh publish target
// from the ssh config file at sshConfigPath, treating Host as an alias. A
// missing ssh config file is not an error.
func ResolveSSHTarget(t PublishTarget, sshConfigPath string) (PublishTarget, error) {
	if t.Host == "" && t.Hostname == "" {
		return t, fmt.Errorf("publish target %q has neither host nor hostname", t.Name)
	}
	alias := t.Host
	if alias == "" {
		alias = t.Hostname
	}

	f, err := os.Open(sshConfigPath)
	if err != nil && !os.IsNotExist(err) {
		return t, fmt.Errorf("failed to open ssh config file %s: %w", sshConfigPath, err)
	}
	if err == nil {
		defer f.Close()
		cfg, err := ssh_config.Decode(f)
		if err != nil {
			return t, fmt.Errorf("failed to parse ssh config file %s: %w", sshConfigPath, err)
		}

		if t.Hostname == "" {
			t.Hostname, _ = cfg.Get(alias, "HostName")
		}
		if t.User == "" {
			t.User, _ = cfg.Get(alias, "User")
		}
		if t.Port == 0 {
			if portStr, _ := cfg.Get(alias, "Port"); portStr != "" {
				if p, err := strconv.Atoi(portStr); err == nil {
					t.Port = p
				}
			}
		}
		if t.KeyPath == "" {
			t.KeyPath, _ = cfg.Get(alias, "IdentityFile")
		}
	}

	if t.Hostname == "" {
		t.Hostname = alias
	}
	if t.Port == 0 {
		t.Port = 22
	}
	if t.User == "" {
		t.User = os.Getenv("USER")
	}
	if t.KeyPath != "" {
		resolved, err := ResolvePath(t.KeyPath)
		if err == nil {
			t.KeyPath = resolved
		}
	}
	return t, nil
}
