// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/history"
	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/platform/platformtest"
	"ccos/internal/runner"
)

type fakePlatform struct{ env *platform.Env }

func (f *fakePlatform) Execute(_ context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "echo":
		return platform.NewResult("fake", action, map[string]string(p)), nil
	case "render":
		if obs := f.env.Jobs.Observer; obs != nil {
			obs(jobs.Event{Kind: jobs.EventSubmitted, ID: "job-1"})
		}
		return platform.NewResult("fake", action, "rendered"), nil
	}
	return nil, apierr.HTTPStatus(500, []byte("upstream down"))
}

func newRouter(t *testing.T, creds map[string]string) *mux.Router {
	t.Helper()
	reg := platform.NewRegistry()
	reg.Register(platform.Definition{
		Name:        "fake",
		Summary:     "A fake platform",
		Credentials: []platform.Credential{{Env: "FAKE_KEY"}},
		Setup:       []string{"Get a fake key"},
		Actions: []platform.ActionInfo{
			{Name: "echo", Summary: "Echo params", Required: []string{"msg"}},
			{Name: "render", Summary: "Render", Async: true},
			{Name: "boom", Summary: "Fail"},
		},
		Open: func(env *platform.Env) (platform.Platform, error) { return &fakePlatform{env: env}, nil },
	})

	env := platformtest.Env(t, creds, nil)
	r := runner.New(reg, env)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	r.History = store
	t.Cleanup(func() { r.Close() })
	return NewRouter(r)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListPlatforms(t *testing.T) {
	h := newRouter(t, map[string]string{"FAKE_KEY": "k"})
	rec := do(t, h, "GET", "/api/platforms", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []PlatformInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Ready)
	assert.Equal(t, []string{"FAKE_KEY"}, list[0].Credentials)
	assert.Equal(t, "ccos fake echo msg=...", list[0].Actions[0].Usage)

	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/platforms/nope", "").Code)
}

func TestRunStatuses(t *testing.T) {
	h := newRouter(t, map[string]string{"FAKE_KEY": "k"})

	rec := do(t, h, "POST", "/api/run/fake/echo", `{"msg":"hi","n":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res platform.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, map[string]any{"msg": "hi", "n": "3"}, res.Data)

	rec = do(t, h, "POST", "/api/run/fake/echo", `{"params":"msg=a%20b"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"msg":"a b"`)

	rec = do(t, h, "POST", "/api/run/fake/echo", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, apierr.CodeUsage, e.Code)
	assert.Equal(t, "ccos fake echo msg=...", e.Usage)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/run/fake/echo", `[1]`).Code)
	assert.Equal(t, http.StatusBadGateway, do(t, h, "POST", "/api/run/fake/boom", "").Code)
}

func TestRunMissingCredential(t *testing.T) {
	h := newRouter(t, nil)
	rec := do(t, h, "POST", "/api/run/fake/echo", `{"msg":"x"}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Contains(t, e.Setup, "Get a fake key")
}

func TestHistory(t *testing.T) {
	h := newRouter(t, map[string]string{"FAKE_KEY": "k"})
	do(t, h, "POST", "/api/run/fake/echo", `{"msg":"1"}`)
	do(t, h, "POST", "/api/run/fake/boom", "")

	rec := do(t, h, "GET", "/api/history?platform=fake&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/history?limit=x", "").Code)
}

func TestStream(t *testing.T) {
	h := newRouter(t, map[string]string{"FAKE_KEY": "k"})
	rec := do(t, h, "GET", "/api/run/fake/render/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: submitted\ndata: {")
	assert.Contains(t, body, `"data":"rendered"`)
	assert.Contains(t, body, "event: done")
	assert.Less(t, strings.Index(body, "event: submitted"), strings.Index(body, "event: result"))
}

func TestDashboard(t *testing.T) {
	h := newRouter(t, nil)
	rec := do(t, h, "GET", "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/platforms")
}

func TestParamsFromBody(t *testing.T) {
	p, err := paramsFromBody([]byte(`{"a":"x","b":true,"c":null}`))
	require.NoError(t, err)
	assert.Equal(t, params.Params{"a": "x", "b": "true"}, p)

	_, err = paramsFromBody([]byte(`{"a":{"nested":1}}`))
	assert.Equal(t, apierr.CodeUsage, apierr.Code(err))

	p, err = paramsFromBody(nil)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestParamsStringMatchesCommandLine(t *testing.T) {
	raw := "q=c++&note=a+b%20c"
	fromBody, err := paramsFromBody([]byte(`{"params":"` + raw + `"}`))
	require.NoError(t, err)
	fromArgs, err := params.Parse([]string{raw})
	require.NoError(t, err)

	assert.Equal(t, fromArgs, fromBody)
	assert.Equal(t, "c++", fromBody.Get("q"))
	assert.Equal(t, "a+b c", fromBody.Get("note"))

	_, err = paramsFromBody([]byte(`{"params":"novalue"}`))
	assert.Equal(t, apierr.CodeUsage, apierr.Code(err))
}
