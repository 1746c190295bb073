// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(list []Agent) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Name
	}
	return out
}

func TestEmbeddedAgents(t *testing.T) {
	list, err := Embedded()
	require.NoError(t, err)
	assert.Equal(t, []string{"analytics-analyst", "content-producer", "fundraising-scout", "growth-marketer"}, names(list))

	a, ok := Find(list, "content-producer")
	require.True(t, ok)
	assert.Contains(t, a.Platforms, "veo")
	assert.Equal(t, SourceEmbedded, a.Source)
	assert.NotContains(t, a.Body, "description:")
	assert.Contains(t, a.Body, "# Content Producer")
}

func TestParse(t *testing.T) {
	a, err := Parse([]byte("no frontmatter here"), "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", a.Name)
	assert.Equal(t, "no frontmatter here", a.Body)

	_, err = Parse([]byte("---\nname: x\nbody"), "broken")
	assert.Error(t, err)

	a, err = Parse([]byte("---\ndescription: d\n---\nhello"), "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", a.Name)
	assert.Equal(t, "d", a.Description)
	assert.Equal(t, "hello", a.Body)
}

func TestLoadOverlaysUserDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "growth-marketer.md"), []byte("---\nname: growth-marketer\ndescription: mine\n---\ncustom"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent10.md"), []byte("ten"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent9.md"), []byte("nine"), 0644))

	list, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"agent9", "agent10", "analytics-analyst", "content-producer", "fundraising-scout", "growth-marketer"}, names(list))

	gm, _ := Find(list, "growth-marketer")
	assert.Equal(t, "mine", gm.Description)
	assert.Equal(t, filepath.Join(dir, "growth-marketer.md"), gm.Source)

	list, err = Load(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestInstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "agents")
	res, err := Install(dir, false)
	require.NoError(t, err)
	assert.Len(t, res.Written, 4)
	assert.Empty(t, res.Skipped)

	data, err := os.ReadFile(filepath.Join(dir, "fundraising-scout.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: fundraising-scout")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fundraising-scout.md"), []byte("edited"), 0644))
	res, err = Install(dir, false)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 4)
	data, _ = os.ReadFile(filepath.Join(dir, "fundraising-scout.md"))
	assert.Equal(t, "edited", string(data))

	res, err = Install(dir, true)
	require.NoError(t, err)
	assert.Len(t, res.Written, 4)
}

func TestRender(t *testing.T) {
	a := Agent{Name: "demo", Description: "A demo agent", Platforms: []string{"stripe"}, Body: "# Heading\n\nSome text."}
	out, err := Render(a, 60, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "Some text.")
}
