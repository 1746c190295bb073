// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllRegistersEveryPlatform(t *testing.T) {
	reg := All()
	assert.Len(t, reg.Names(), 16)

	for _, def := range reg.Definitions() {
		assert.NotEmpty(t, def.Summary, def.Name)
		require.NotEmpty(t, def.Actions, def.Name)
		for _, a := range def.Actions {
			assert.NotEmpty(t, a.Summary, "%s %s", def.Name, a.Name)
		}
	}
}
