// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package mubert

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/params"
	"ccos/internal/platform/platformtest"
)

var creds = map[string]string{"MUBERT_CUSTOMER_ID": "cust", "MUBERT_ACCESS_TOKEN": "tok"}

func TestGenerateDownloadsTrack(t *testing.T) {
	var polls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tracks":
			assert.Equal(t, "cust", r.Header.Get("customer-id"))
			assert.Equal(t, "tok", r.Header.Get("access-token"))
			var body generateBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 30, body.Duration)
			assert.Equal(t, "1.0.0", body.PlaylistIndex)
			assert.Empty(t, body.Prompt)
			fmt.Fprint(w, `{"data":{"id":"trk","generations":[{"status":"processing"}]}}`)
		case r.URL.Path == "/tracks/trk":
			if atomic.AddInt32(&polls, 1) < 2 {
				fmt.Fprint(w, `{"data":{"id":"trk","generations":[{"status":"processing"}]}}`)
				return
			}
			fmt.Fprintf(w, `{"data":{"id":"trk","generations":[{"status":"done","url":"%s/trk.mp3"}]}}`, srv.URL)
		case r.URL.Path == "/trk.mp3":
			w.Write([]byte(strings.Repeat("m", 64)))
		}
	}))
	defer srv.Close()
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	res, err := platformtest.Run(t, Definition(), env, "generate", params.Params{"duration": "30"})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.EqualValues(t, 64, res.Artifacts[0].Bytes)
	assert.Equal(t, "audio/mp3", res.Artifacts[0].ContentType)
	assert.EqualValues(t, 2, polls)
}

func TestGeneratePromptReplacesPlaylist(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tracks":
			var raw map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			assert.Equal(t, "lofi beats for a product demo", raw["prompt"])
			assert.NotContains(t, raw, "playlist_index")
			fmt.Fprint(w, `{"data":{"id":"trk"}}`)
		case "/tracks/trk":
			fmt.Fprintf(w, `{"data":{"id":"trk","generations":[{"status":"done","url":"%s/trk.mp3"}]}}`, srv.URL)
		default:
			w.Write([]byte(strings.Repeat("m", 32)))
		}
	}))
	defer srv.Close()
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	res, err := platformtest.Run(t, Definition(), env, "generate", params.Params{"prompt": "lofi beats for a product demo"})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
}

func TestGenerateTooSmall(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tracks":
			fmt.Fprint(w, `{"data":{"id":"trk"}}`)
		case "/tracks/trk":
			fmt.Fprintf(w, `{"data":{"id":"trk","generations":[{"status":"done","url":"%s/trk.mp3"}]}}`, srv.URL)
		default:
			w.Write([]byte("tiny"))
		}
	}))
	defer srv.Close()
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	_, err := platformtest.Run(t, Definition(), env, "generate", nil)
	assert.Equal(t, apierr.CodeArtifactTooSmall, apierr.Code(err))
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":3,"message":"track not found"}}`)
	}))
	defer srv.Close()
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL})

	_, err := platformtest.Run(t, Definition(), env, "status", params.Params{"id": "nope"})
	assert.Equal(t, apierr.CodeUpstream, apierr.Code(err))
	assert.Contains(t, err.Error(), "track not found")
}
