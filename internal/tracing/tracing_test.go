// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopTracerByDefault(t *testing.T) {
	ctx, span := Start(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	End(span, nil)
}

func TestFileProviderWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tp, err := NewFileProvider(path)
	require.NoError(t, err)

	ctx := SetTracer(context.Background(), tp.Tracer("test"))
	_, span := Start(ctx, "run resend send")
	assert.True(t, span.SpanContext().IsValid())
	End(span, errors.New("boom"))

	require.NoError(t, tp.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run resend send")
	assert.Contains(t, string(data), AttrErrorCode)
}
