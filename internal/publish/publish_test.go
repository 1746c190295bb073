// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccos/internal/apierr"
	"ccos/internal/config"
)

type putRecorder struct {
	mu    sync.Mutex
	paths []string
	body  []byte
}

func fakeS3(t *testing.T, status int) (*httptest.Server, *putRecorder) {
	t.Helper()
	rec := &putRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.Method+" "+r.URL.Path)
		rec.body = body
		rec.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func isolateAWS(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDTEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestS3PublisherUploadsWithPrefix(t *testing.T) {
	isolateAWS(t)
	srv, rec := fakeS3(t, http.StatusOK)

	pub, err := NewS3Publisher(context.Background(), config.PublishTarget{
		Name: "media", Type: "s3", Bucket: "assets", Prefix: "ccos/", Endpoint: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "media", pub.Name())

	file := writeArtifact(t, "clip.mp4", "not really a video")
	loc, err := pub.Publish(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "s3://assets/ccos/clip.mp4", loc)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.paths, 1)
	assert.Equal(t, "PUT /assets/ccos/clip.mp4", rec.paths[0])
	assert.Equal(t, "not really a video", string(rec.body))
}

func TestS3PublisherKey(t *testing.T) {
	p := &S3Publisher{}
	assert.Equal(t, "a.png", p.Key("/tmp/x/a.png"))
	p.prefix = "daily"
	assert.Equal(t, "daily/a.png", p.Key("/tmp/x/a.png"))
}

func TestS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), config.PublishTarget{Name: "nobucket", Type: "s3"})
	require.Error(t, err)
	assert.Equal(t, apierr.CodeConfig, apierr.Code(err))
}

func TestS3PublisherMissingFile(t *testing.T) {
	isolateAWS(t)
	srv, _ := fakeS3(t, http.StatusOK)
	pub, err := NewS3Publisher(context.Background(), config.PublishTarget{Name: "m", Bucket: "b", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), filepath.Join(t.TempDir(), "absent.mp3"))
	require.Error(t, err)
	assert.Equal(t, apierr.CodeIO, apierr.Code(err))
}

func TestFromConfigErrors(t *testing.T) {
	cfg := config.Default()
	cfg.PublishTargets = []config.PublishTarget{{Name: "weird", Type: "ftp"}}

	_, err := FromConfig(context.Background(), cfg, "missing", nil)
	require.Error(t, err)
	assert.Equal(t, apierr.CodeConfig, apierr.Code(err))
	assert.Contains(t, err.Error(), "missing")

	_, err = FromConfig(context.Background(), cfg, "weird", nil)
	require.Error(t, err)
	assert.Equal(t, apierr.CodeConfig, apierr.Code(err))
	assert.Contains(t, err.Error(), "ftp")
}

func TestFromConfigBuildsS3(t *testing.T) {
	isolateAWS(t)
	cfg := config.Default()
	cfg.PublishTargets = []config.PublishTarget{{Name: "bucket", Type: "s3", Bucket: "b", Region: "eu-west-1"}}

	pub, err := FromConfig(context.Background(), cfg, "bucket", nil)
	require.NoError(t, err)
	assert.IsType(t, &S3Publisher{}, pub)
}
