// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package gmail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/googleauth"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/platform/platformtest"
)

var envCreds = map[string]string{
	"GMAIL_CLIENT_ID":     "cid",
	"GMAIL_CLIENT_SECRET": "sec",
	"GMAIL_REFRESH_TOKEN": "1//r",
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newEnv(t *testing.T, creds map[string]string, srvURL string) *platform.Env {
	t.Helper()
	env := platformtest.Env(t, creds, map[string]string{Name: srvURL, googleauth.Endpoint: srvURL + "/token"})
	env.Config.GmailDir = t.TempDir()
	return env
}

func TestQueries(t *testing.T) {
	assert.Equal(t, "is:unread from:a@b.c subject:invoice", UnreadQuery("a@b.c", "invoice"))
	assert.Equal(t, "is:unread", UnreadQuery("", ""))

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "after:2025/04/24", SinceQuery(now, 7, ""))
	assert.Equal(t, "after:2025/04/17 label:inbox", SinceQuery(now, 14, "label:inbox"))
	assert.Equal(t, "(subject:pitch OR subject:deck)", SubjectAny([]string{"pitch", "deck"}))
}

func TestDecodeBody(t *testing.T) {
	for _, enc := range []string{
		base64.URLEncoding.EncodeToString([]byte("héllo?>")),
		base64.RawURLEncoding.EncodeToString([]byte("héllo?>")),
	} {
		got, err := DecodeBody(enc)
		require.NoError(t, err)
		assert.Equal(t, "héllo?>", got)
	}
}

func TestParsePrefersPlainText(t *testing.T) {
	raw := rawMessage{ID: "m1", ThreadID: "t1"}
	raw.Payload.MimeType = "multipart/mixed"
	raw.Payload.Parts = []part{{MimeType: "multipart/alternative"}}
	html := part{MimeType: "text/html"}
	html.Body.Data = b64("<p>hi</p>")
	plain := part{MimeType: "text/plain"}
	plain.Body.Data = b64("hi")
	raw.Payload.Parts[0].Parts = []part{html, plain}

	msg, err := parseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Body)
	assert.False(t, msg.IsHTML)

	raw.Payload.Parts[0].Parts = []part{html}
	msg, err = parseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", msg.Body)
	assert.True(t, msg.IsHTML)
}

func TestInvestorEmails(t *testing.T) {
	var tokenHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			atomic.AddInt32(&tokenHits, 1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"ya29.g","expires_in":3600}`)
		case r.URL.Path == "/messages":
			assert.Equal(t, "Bearer ya29.g", r.Header.Get("Authorization"))
			q := r.URL.Query().Get("q")
			assert.True(t, strings.HasPrefix(q, "after:2025/04/17 (subject:investment OR "), q)
			assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
			fmt.Fprint(w, `{"messages":[{"id":"a"},{"id":"b"}]}`)
		case strings.HasPrefix(r.URL.Path, "/messages/"):
			id := strings.TrimPrefix(r.URL.Path, "/messages/")
			fmt.Fprintf(w, `{"id":%q,"threadId":"t","snippet":"s","payload":{"mimeType":"text/plain","headers":[{"name":"Subject","value":"Pitch %s"},{"name":"From","value":"vc@fund.com"}],"body":{"data":%q}}}`, id, id, b64("body "+id))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	env := newEnv(t, envCreds, srv.URL)

	res, err := platformtest.Run(t, Definition(), env, "investor-emails", params.Params{"days": "14"})
	require.NoError(t, err)
	msgs := res.Data.(map[string]any)["messages"].([]Message)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Pitch a", msgs[0].Subject)
	assert.Equal(t, "body b", msgs[1].Body)
	assert.Equal(t, "vc@fund.com", msgs[1].From)
	assert.EqualValues(t, 1, tokenHits)
}

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"ya29.g","expires_in":3600}`)
			return
		}
		assert.Equal(t, "/messages/send", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, err := base64.URLEncoding.DecodeString(body["raw"])
		require.NoError(t, err)
		assert.Contains(t, string(raw), "To: ops@example.com\r\n")
		assert.Contains(t, string(raw), "Content-Type: text/html")
		assert.Equal(t, "thread-9", body["threadId"])
		fmt.Fprint(w, `{"id":"sent1","threadId":"thread-9"}`)
	}))
	defer srv.Close()
	env := newEnv(t, envCreds, srv.URL)

	res, err := platformtest.Run(t, Definition(), env, "send", params.Params{
		"to": "ops@example.com", "subject": "Weekly", "body": "<b>hi</b>", "html": "true", "reply_to": "thread-9",
	})
	require.NoError(t, err)
	assert.Equal(t, &Sent{MessageID: "sent1", ThreadID: "thread-9"}, res.Data)
}

func TestOpenWithoutClientIsMissingCredential(t *testing.T) {
	env := newEnv(t, nil, "http://127.0.0.1:1")
	_, err := Open(env)
	require.Error(t, err)
	assert.Equal(t, apierr.CodeMissingCredential, apierr.Code(err))
	assert.Contains(t, apierr.SetupGuide(err), "Enable the Gmail API")
}

func TestAuthFlowWithClientFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "file-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.new","refresh_token":"1//new","expires_in":3600}`)
	}))
	defer srv.Close()
	env := newEnv(t, nil, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(env.Config.GmailDir, "credentials.json"),
		[]byte(`{"installed":{"client_id":"file-id","client_secret":"file-secret","redirect_uris":["http://localhost"]}}`), 0600))

	res, err := platformtest.Run(t, Definition(), env, "auth-url", nil)
	require.NoError(t, err)
	u, err := url.Parse(res.Data.(map[string]string)["url"])
	require.NoError(t, err)
	assert.Equal(t, "file-id", u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "gmail.modify")

	_, err = platformtest.Run(t, Definition(), env, "auth-code", params.Params{"code": "4/xyz"})
	require.NoError(t, err)
	tok, err := googleauth.LoadToken(filepath.Join(env.Config.GmailDir, "token.json"))
	require.NoError(t, err)
	assert.Equal(t, "1//new", tok.RefreshToken)
}
