// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package runway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/params"
	"ccos/internal/platform/platformtest"
)

var creds = map[string]string{"RUNWAYML_API_SECRET": "key_test"}

// fakeRunway answers polls from statuses in order and serves the video.
func fakeRunway(t *testing.T, statuses []string, polls *int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiVersion, r.Header.Get("X-Runway-Version"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/image_to_video":
			var body videoBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gen4_turbo", body.Model)
			w.Write([]byte(`{"id":"task-1"}`))
		case r.URL.Path == "/tasks/task-1":
			n := int(atomic.AddInt32(polls, 1))
			status := statuses[len(statuses)-1]
			if n <= len(statuses) {
				status = statuses[n-1]
			}
			json.NewEncoder(w).Encode(Task{ID: "task-1", Status: status, Output: []string{srv.URL + "/out.mp4"}, Failure: "content moderation"})
		case r.URL.Path == "/out.mp4":
			w.Write([]byte(strings.Repeat("v", 256)))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVideoPollsUntilSucceeded(t *testing.T) {
	var polls int32
	srv := fakeRunway(t, []string{"PENDING", "RUNNING", "SUCCEEDED"}, &polls)
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	res, err := platformtest.Run(t, Definition(), env, "video", params.Params{"prompt_image": "https://img/x.png", "prompt_text": "waves"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&polls))
	require.Len(t, res.Artifacts, 1)
	assert.EqualValues(t, 256, res.Artifacts[0].Bytes)
	_, err = os.Stat(res.Artifacts[0].Path)
	assert.NoError(t, err)
}

func TestVideoFailedStopsPolling(t *testing.T) {
	var polls int32
	srv := fakeRunway(t, []string{"THROTTLED", "FAILED"}, &polls)
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	_, err := platformtest.Run(t, Definition(), env, "video", params.Params{"prompt_image": "https://img/x.png"})
	require.Error(t, err)
	assert.Equal(t, apierr.CodeJobFailed, apierr.Code(err))
	assert.Contains(t, err.Error(), "content moderation")
	assert.EqualValues(t, 2, atomic.LoadInt32(&polls))
}

func TestVideoTimesOut(t *testing.T) {
	var polls int32
	srv := fakeRunway(t, []string{"RUNNING"}, &polls)
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	_, err := platformtest.Run(t, Definition(), env, "video", params.Params{"prompt_image": "https://img/x.png"})
	assert.Equal(t, apierr.CodeJobTimeout, apierr.Code(err))
	assert.EqualValues(t, env.Jobs.MaxAttempts, atomic.LoadInt32(&polls))
}

func TestStatus(t *testing.T) {
	var polls int32
	srv := fakeRunway(t, []string{"RUNNING"}, &polls)
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	res, err := platformtest.Run(t, Definition(), env, "status", params.Params{"id": "task-1"})
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", res.Data.(*Task).Status)
}
