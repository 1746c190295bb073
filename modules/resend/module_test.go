// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package resend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/platform/platformtest"
)

func TestSend(t *testing.T) {
	var got sendBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	env := platformtest.Env(t, map[string]string{"RESEND_API_KEY": "re_test", "RESEND_FROM_EMAIL": "team@example.com"}, map[string]string{Name: srv.URL})
	res, err := platformtest.Run(t, Definition(), env, "send", params.Params{
		"to": "a@example.com,b@example.com", "subject": "Launch", "html": "<p>hi</p>",
	})
	require.NoError(t, err)

	out := res.Data.(*SendResponse)
	assert.Equal(t, "email_123", out.ID)
	assert.Equal(t, "team@example.com", got.From)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.To)
	assert.Equal(t, "<p>hi</p>", got.HTML)
	assert.Empty(t, got.Text)
}

func TestSendFallsBackToSubjectText(t *testing.T) {
	var got sendBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"x"}`))
	}))
	defer srv.Close()

	env := platformtest.Env(t, map[string]string{"RESEND_API_KEY": "k"}, map[string]string{Name: srv.URL})
	_, err := platformtest.Run(t, Definition(), env, "send", params.Params{"to": "a@example.com", "subject": "Ping"})
	require.NoError(t, err)
	assert.Equal(t, "Ping", got.Text)
	assert.Equal(t, defaultFrom, got.From)
}

func TestMissingKeyMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	reg := platform.NewRegistry()
	(&Module{}).Register(reg)
	env := platformtest.Env(t, map[string]string{}, map[string]string{Name: srv.URL})
	p := params.Params{"to": "a@example.com", "subject": "s"}

	_, _, err := reg.Prepare(Name, "send", p, env.Creds)
	require.Error(t, err)
	assert.Equal(t, apierr.CodeMissingCredential, apierr.Code(err))
	assert.Contains(t, apierr.SetupGuide(err), "RESEND_API_KEY")

	_, err = Open(env)
	assert.Equal(t, apierr.CodeMissingCredential, apierr.Code(err))
	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}

func TestSendUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	env := platformtest.Env(t, map[string]string{"RESEND_API_KEY": "k"}, map[string]string{Name: srv.URL})
	_, err := platformtest.Run(t, Definition(), env, "send", params.Params{"to": "a@example.com", "subject": "s"})
	require.Error(t, err)
	assert.Equal(t, 422, apierr.StatusCode(err))
	assert.Contains(t, apierr.Detail(err, "body"), "invalid from")
}
