// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package mixpanel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/platform/platformtest"
)

func TestTrack(t *testing.T) {
	var events []trackEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/track", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("verbose"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&events))
		w.Write([]byte(`{"status":1,"error":null}`))
	}))
	defer srv.Close()

	env := platformtest.Env(t, map[string]string{"MIXPANEL_PROJECT_TOKEN": "tok"}, map[string]string{Name: srv.URL})
	res, err := platformtest.Run(t, Definition(), env, "track", params.Params{"event": "signup", "distinct_id": "u1", "props": "plan:pro,seats:3,trial:true"})
	require.NoError(t, err)

	require.Len(t, events, 1)
	props := events[0].Properties
	assert.Equal(t, "signup", events[0].Event)
	assert.Equal(t, "tok", props["token"])
	assert.Equal(t, "u1", props["distinct_id"])
	assert.Equal(t, "pro", props["plan"])
	assert.Equal(t, float64(3), props["seats"])
	assert.Equal(t, true, props["trial"])
	assert.NotEmpty(t, res.Data.(*TrackResult).InsertID)
}

func TestTrackRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"error":"token missing"}`))
	}))
	defer srv.Close()

	env := platformtest.Env(t, map[string]string{"MIXPANEL_PROJECT_TOKEN": "tok"}, map[string]string{Name: srv.URL})
	_, err := platformtest.Run(t, Definition(), env, "track", params.Params{"event": "e"})
	assert.Equal(t, apierr.CodeUpstream, apierr.Code(err))
}

func TestSegmentation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "sa", user)
		assert.Equal(t, "secret", pass)
		q := r.URL.Query()
		assert.Equal(t, "/query/segmentation", r.URL.Path)
		assert.Equal(t, "42", q.Get("project_id"))
		assert.Equal(t, "2025-04-25", q.Get("from_date"))
		assert.Equal(t, "2025-05-01", q.Get("to_date"))
		w.Write([]byte(`{"data":{"series":["2025-05-01"],"values":{"signup":{"2025-05-01":12}}},"legend_size":1}`))
	}))
	defer srv.Close()

	creds := map[string]string{"MIXPANEL_SERVICE_ACCOUNT": "sa", "MIXPANEL_SERVICE_SECRET": "secret", "MIXPANEL_PROJECT_ID": "42"}
	env := platformtest.Env(t, creds, map[string]string{QueryEndpoint: srv.URL})
	res, err := platformtest.Run(t, Definition(), env, "segmentation", params.Params{"event": "signup"})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Data.(*Segmentation).Data.Values["signup"]["2025-05-01"])
}

func TestActionLevelCredentials(t *testing.T) {
	reg := platform.NewRegistry()
	(&Module{}).Register(reg)
	env := platformtest.Env(t, map[string]string{"MIXPANEL_PROJECT_TOKEN": "tok"}, nil)

	_, _, err := reg.Prepare(Name, "track", params.Params{"event": "e"}, env.Creds)
	assert.NoError(t, err)

	_, _, err = reg.Prepare(Name, "segmentation", params.Params{"event": "e"}, env.Creds)
	require.Error(t, err)
	assert.Equal(t, apierr.CodeMissingCredential, apierr.Code(err))
	assert.Contains(t, err.Error(), "MIXPANEL_SERVICE_ACCOUNT")
}

func TestParseProps(t *testing.T) {
	_, err := ParseProps([]string{"novalue"})
	assert.Equal(t, apierr.CodeUsage, apierr.Code(err))
}
