// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
)

func TestParseJoinedAndSeparateForms(t *testing.T) {
	joined, err := Parse([]string{"to=a@b.co&subject=Hello%20there&n=3"})
	require.NoError(t, err)
	separate, err := Parse([]string{"to=a@b.co", "subject=Hello there", "n=3"})
	require.NoError(t, err)

	assert.Equal(t, joined, separate)
	assert.Equal(t, "Hello there", joined.Get("subject"))
}

func TestParseKeepsPlusAndEquals(t *testing.T) {
	p, err := Parse([]string{"q=c++&expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "c++", p.Get("q"))
	assert.Equal(t, "a=b", p.Get("expr"))
}

func TestParseLaterKeysWin(t *testing.T) {
	p, err := Parse([]string{"limit=5", "limit=10"})
	require.NoError(t, err)
	assert.Equal(t, "10", p.Get("limit"))
}

func TestParseRejectsBareWord(t *testing.T) {
	_, err := Parse([]string{"hello"})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeUsage))

	_, err = Parse([]string{"=value"})
	assert.True(t, apierr.Is(err, apierr.CodeUsage))
}

func TestStringRoundTrips(t *testing.T) {
	in := Params{"q": "a b+c", "x": "1&2"}
	out, err := Parse([]string{in.String()})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

type sendRequest struct {
	To      string        `param:"to,required"`
	Subject string        `param:"subject,required"`
	Limit   int           `param:"limit" default:"10"`
	Ratio   float64       `param:"ratio" default:"0.5"`
	HTML    bool          `param:"html"`
	Tags    []string      `param:"tags"`
	Wait    time.Duration `param:"wait" default:"5s"`
	ignored string
}

func TestDecodeFillsFieldsAndDefaults(t *testing.T) {
	var req sendRequest
	err := Decode(Params{"to": "a@b.co", "subject": "hi", "html": "true", "tags": "a, b,,c", "wait": "30"}, &req)
	require.NoError(t, err)

	assert.Equal(t, "a@b.co", req.To)
	assert.Equal(t, 10, req.Limit)
	assert.Equal(t, 0.5, req.Ratio)
	assert.True(t, req.HTML)
	assert.Equal(t, []string{"a", "b", "c"}, req.Tags)
	assert.Equal(t, 30*time.Second, req.Wait)
	assert.Empty(t, req.ignored)
}

func TestDecodeMissingRequired(t *testing.T) {
	var req sendRequest
	err := Decode(Params{"to": "a@b.co"}, &req)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeUsage))
	assert.Contains(t, err.Error(), "subject")
}

func TestDecodeBadNumber(t *testing.T) {
	var req sendRequest
	err := Decode(Params{"to": "a", "subject": "b", "limit": "ten"}, &req)
	assert.True(t, apierr.Is(err, apierr.CodeUsage))
}

func TestDecodeNeedsStructPointer(t *testing.T) {
	var req sendRequest
	assert.Error(t, Decode(Params{}, req))
}

func TestRedacted(t *testing.T) {
	p := Params{"api_key": "sk-1", "access_token": "t", "Password": "p", "topic": "cats"}
	r := Redacted(p)
	assert.Equal(t, "***", r["api_key"])
	assert.Equal(t, "***", r["access_token"])
	assert.Equal(t, "***", r["Password"])
	assert.Equal(t, "cats", r["topic"])
	assert.Equal(t, "sk-1", p["api_key"])
}

func TestMissing(t *testing.T) {
	p := Params{"a": "1", "b": " "}
	assert.Equal(t, []string{"b", "c"}, p.Missing("a", "b", "c"))
}
