// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package jobs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/logger"
	"ccos/internal/retry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedJob returns the statuses in order, one per poll.
type scriptedJob struct {
	statuses  []Status
	polls     int
	submitErr error
	pollErr   error
}

func (j *scriptedJob) Submit(context.Context) (string, error) {
	if j.submitErr != nil {
		return "", j.submitErr
	}
	return "job-1", nil
}

func (j *scriptedJob) Poll(_ context.Context, id string) (Status, error) {
	j.polls++
	if j.pollErr != nil {
		return Status{}, j.pollErr
	}
	if j.polls > len(j.statuses) {
		return Status{State: Pending}, nil
	}
	return j.statuses[j.polls-1], nil
}

type sleepRecorder struct{ sleeps []time.Duration }

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return nil
}

func opts(rec *sleepRecorder, max int) Options {
	return Options{Interval: 5 * time.Second, MaxAttempts: max, Sleep: rec.sleep}
}

func TestAwaitStopsOnSuccess(t *testing.T) {
	job := &scriptedJob{statuses: []Status{
		{State: Pending}, {State: Pending}, {State: Succeeded, ArtifactURL: "http://x/out.mp4"},
	}}
	rec := &sleepRecorder{}

	id, status, err := Await(context.Background(), job, opts(rec, 10))
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, Succeeded, status.State)
	assert.Equal(t, 3, job.polls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.sleeps)
}

func TestAwaitAbortsOnFailure(t *testing.T) {
	job := &scriptedJob{statuses: []Status{
		{State: Pending}, {State: Failed, Detail: "content policy"}, {State: Succeeded},
	}}
	rec := &sleepRecorder{}

	_, _, err := Await(context.Background(), job, opts(rec, 10))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeJobFailed))
	assert.Contains(t, err.Error(), "content policy")
	assert.Equal(t, 2, job.polls, "no polls after a terminal failure")
}

func TestAwaitTimesOutAtCeiling(t *testing.T) {
	job := &scriptedJob{}
	rec := &sleepRecorder{}

	_, _, err := Await(context.Background(), job, opts(rec, 4))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeJobTimeout))
	assert.Equal(t, 4, job.polls)
	assert.Len(t, rec.sleeps, 3)
}

func TestAwaitPropagatesErrors(t *testing.T) {
	submitErr := apierr.HTTPStatus(400, []byte("bad prompt"))
	_, _, err := Await(context.Background(), &scriptedJob{submitErr: submitErr}, opts(&sleepRecorder{}, 3))
	assert.Equal(t, 400, apierr.StatusCode(err))

	job := &scriptedJob{pollErr: errors.New("poll broke")}
	_, _, err = Await(context.Background(), job, opts(&sleepRecorder{}, 3))
	assert.EqualError(t, err, "poll broke")
	assert.Equal(t, 1, job.polls)
}

func TestAwaitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := &scriptedJob{}

	_, _, err := Await(ctx, job, Options{Interval: time.Hour, MaxAttempts: 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.polls)
}

func TestObserverSeesEveryPoll(t *testing.T) {
	job := &scriptedJob{statuses: []Status{{State: Pending}, {State: Succeeded}}}
	var kinds []EventKind
	o := opts(&sleepRecorder{}, 5)
	o.Observer = func(e Event) { kinds = append(kinds, e.Kind) }

	_, _, err := Await(context.Background(), job, o)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventSubmitted, EventPolled, EventPolled}, kinds)
}

func TestCompleteDownloadsAndChecksSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.mp4":
			w.Write([]byte(strings.Repeat("v", 4096)))
		default:
			w.Write([]byte("x"))
		}
	}))
	defer srv.Close()
	client := httpapi.New(5*time.Second, retry.Policy{Attempts: 1}, logger.Discard())
	defer client.HTTP.CloseIdleConnections()
	dir := t.TempDir()

	job := &scriptedJob{statuses: []Status{{State: Succeeded, ArtifactURL: srv.URL + "/good.mp4"}}}
	art, err := Complete(context.Background(), job, HTTPFetch(client), filepath.Join(dir, "good.mp4"), 1024, opts(&sleepRecorder{}, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 4096, art.Bytes)
	assert.Equal(t, "job-1", art.JobID)
	assert.FileExists(t, art.Path)

	job = &scriptedJob{statuses: []Status{{State: Succeeded, ArtifactURL: srv.URL + "/tiny.mp4"}}}
	_, err = Complete(context.Background(), job, HTTPFetch(client), filepath.Join(dir, "tiny.mp4"), 1024, opts(&sleepRecorder{}, 3))
	assert.True(t, apierr.Is(err, apierr.CodeArtifactTooSmall))
	_, statErr := os.Stat(filepath.Join(dir, "tiny.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCompleteWithCustomFetch(t *testing.T) {
	job := &scriptedJob{statuses: []Status{{State: Succeeded}}}
	fetch := func(_ context.Context, id string, _ Status, w io.Writer) (int64, error) {
		n, err := io.WriteString(w, strings.Repeat("a", 2000))
		return int64(n), err
	}
	art, err := Complete(context.Background(), job, fetch, filepath.Join(t.TempDir(), "a.bin"), 1024, opts(&sleepRecorder{}, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2000, art.Bytes)
}

func TestHTTPFetchNeedsURL(t *testing.T) {
	client := httpapi.New(time.Second, retry.Policy{Attempts: 1}, logger.Discard())
	_, err := HTTPFetch(client)(context.Background(), "id", Status{State: Succeeded}, io.Discard)
	assert.True(t, apierr.Is(err, apierr.CodeJobFailed))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "failed", Failed.String())
}
