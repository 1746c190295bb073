// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/params"
)

func TestWriteRecordAndActivityLog(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	started := time.Date(2025, 3, 9, 14, 5, 6, 0, time.UTC)

	rec := Record{
		ID:         "0f8e2c1a-1111-2222-3333-444455556666",
		Platform:   "stripe",
		Action:     "balance",
		Params:     params.Params{"limit": "5"},
		StartedAt:  started,
		DurationMS: 42,
		Status:     StatusSucceeded,
		Data:       map[string]any{"available": 10},
	}
	path, err := store.Write(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "stripe", "2025-03-09", "140506-balance-0f8e2c1a.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "balance", got["action"])
	assert.Equal(t, "succeeded", got["status"])

	rec.ID = "aaaaaaaa-bbbb"
	rec.Status = StatusFailed
	_, err = store.Write(rec)
	require.NoError(t, err)

	log, err := os.ReadFile(filepath.Join(dir, "stripe", "activity.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(log)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2025-03-09T14:05:06Z balance succeeded 0f8e2c1a-1111-2222-3333-444455556666", lines[0])
	assert.Equal(t, "2025-03-09T14:05:06Z balance failed aaaaaaaa-bbbb", lines[1])
}
