// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package reddit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/params"
	"ccos/internal/platform/platformtest"
)

var creds = map[string]string{
	"REDDIT_CLIENT_ID":     "id",
	"REDDIT_CLIENT_SECRET": "secret",
	"REDDIT_USERNAME":      "bot",
	"REDDIT_PASSWORD":      "pw",
	"REDDIT_USER_AGENT":    "ccos-test/1.0",
}

func newServer(t *testing.T, tokenCalls *int, api http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ccos-test/1.0", r.Header.Get("User-Agent"))
		if r.URL.Path == "/api/v1/access_token" {
			*tokenCalls++
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "id", user)
			assert.Equal(t, "secret", pass)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			fmt.Fprint(w, `{"access_token":"rt","token_type":"bearer"}`)
			return
		}
		assert.Equal(t, "Bearer rt", r.Header.Get("Authorization"))
		api(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHot(t *testing.T) {
	var tokenCalls int
	srv := newServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/hot", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":{"children":[{"data":{"id":"a1","title":"Go 1.24","score":321}}]}}`)
	})
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL, AuthEndpoint: srv.URL})

	res, err := platformtest.Run(t, Definition(), env, "hot", params.Params{"subreddit": "r/golang", "limit": "5"})
	require.NoError(t, err)
	assert.Equal(t, []Post{{ID: "a1", Title: "Go 1.24", Score: 321}}, res.Data)
	assert.Equal(t, 1, tokenCalls)
}

func TestSearchRestrictsToSubreddit(t *testing.T) {
	var tokenCalls int
	srv := newServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/startups/search", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("restrict_sr"))
		assert.Equal(t, "seed round", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"data":{"children":[]}}`)
	})
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL, AuthEndpoint: srv.URL})

	res, err := platformtest.Run(t, Definition(), env, "search", params.Params{"q": "seed round", "subreddit": "startups"})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}

func TestSubmitReportsErrors(t *testing.T) {
	var tokenCalls int
	srv := newServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "self", r.PostForm.Get("kind"))
		fmt.Fprint(w, `{"json":{"errors":[["SUBREDDIT_NOEXIST","that subreddit doesn't exist","sr"]]}}`)
	})
	env := platformtest.Env(t, creds, map[string]string{Name: srv.URL, AuthEndpoint: srv.URL})

	_, err := platformtest.Run(t, Definition(), env, "submit", params.Params{"subreddit": "nope", "title": "t", "text": "body"})
	assert.Equal(t, apierr.CodeUpstream, apierr.Code(err))
	assert.Contains(t, err.Error(), "SUBREDDIT_NOEXIST")
}

func TestSubmitNeedsTextOrURL(t *testing.T) {
	env := platformtest.Env(t, creds, nil)
	_, err := platformtest.Run(t, Definition(), env, "submit", params.Params{"subreddit": "x", "title": "t"})
	assert.Equal(t, apierr.CodeUsage, apierr.Code(err))
}
