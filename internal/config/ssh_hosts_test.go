// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSSHTargetFromAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	sshCfg := "Host media\n  HostName media.example.com\n  User deploy\n  Port 2222\n  IdentityFile /keys/media\n"
	require.NoError(t, os.WriteFile(path, []byte(sshCfg), 0600))

	got, err := ResolveSSHTarget(PublishTarget{Name: "m", Type: "ssh", Host: "media", RemoteDir: "/srv"}, path)
	require.NoError(t, err)
	assert.Equal(t, "media.example.com", got.Hostname)
	assert.Equal(t, "deploy", got.User)
	assert.Equal(t, 2222, got.Port)
	assert.Equal(t, "/keys/media", got.KeyPath)
	assert.Equal(t, "/srv", got.RemoteDir)
}

func TestResolveSSHTargetExplicitFieldsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("Host media\n  User deploy\n"), 0600))

	got, err := ResolveSSHTarget(PublishTarget{Name: "m", Host: "media", User: "root", Port: 22}, path)
	require.NoError(t, err)
	assert.Equal(t, "root", got.User)
	assert.Equal(t, "media", got.Hostname)
}

func TestResolveSSHTargetWithoutConfigFile(t *testing.T) {
	got, err := ResolveSSHTarget(PublishTarget{Name: "m", Hostname: "10.0.0.5", User: "me"}, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", got.Hostname)
	assert.Equal(t, 22, got.Port)

	_, err = ResolveSSHTarget(PublishTarget{Name: "empty"}, "")
	assert.Error(t, err)
}
