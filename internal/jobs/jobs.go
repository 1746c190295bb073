// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package jobs drives long-running remote generation jobs: submit, poll on a
// fixed interval up to a ceiling, then fetch the artifact and check its size.
package jobs

import (
	"context"
	"io"
	"time"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
)

// State is the normalized state of a remote job.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Status is one observation of a job.
type Status struct {
	State State
	// Detail is the raw provider status or failure reason.
	Detail string
	// ArtifactURL is set once the job has succeeded, if the provider serves the result by URL.
	ArtifactURL string
	// Progress is a 0..1 fraction when the provider reports one.
	Progress float64
}

// Job is a provider-specific submit/poll pair.
type Job interface {
	Submit(ctx context.Context) (id string, err error)
	Poll(ctx context.Context, id string) (Status, error)
}

// EventKind tags an Event.
type EventKind int

const (
	EventSubmitted EventKind = iota
	EventPolled
	EventFetched
)

// Event is passed to Options.Observer as the job advances.
type Event struct {
	Kind    EventKind
	ID      string
	Attempt int
	Status  Status
}

// Options controls polling.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between polls. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Observer is told about every state change, e.g. to drive a spinner.
	Observer func(Event)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 60
	}
	if o.Sleep == nil {
		o.Sleep = Sleep
	}
	if o.Observer == nil {
		o.Observer = func(Event) {}
	}
	return o
}

// Await submits job and polls it until it reaches a terminal state. The first
// poll happens right after submission; later polls are Interval apart.
func Await(ctx context.Context, job Job, opts Options) (string, Status, error) {
	opts = opts.withDefaults()

	id, err := job.Submit(ctx)
	if err != nil {
		return "", Status{}, err
	}
	opts.Observer(Event{Kind: EventSubmitted, ID: id})

	status, err := Watch(ctx, job, id, opts)
	return id, status, err
}

// Watch polls an already submitted job.
func Watch(ctx context.Context, job Job, id string, opts Options) (Status, error) {
	opts = opts.withDefaults()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := opts.Sleep(ctx, opts.Interval); err != nil {
				return Status{}, err
			}
		}

		status, err := job.Poll(ctx, id)
		if err != nil {
			return Status{}, err
		}
		opts.Observer(Event{Kind: EventPolled, ID: id, Attempt: attempt, Status: status})

		switch status.State {
		case Succeeded:
			return status, nil
		case Failed:
			return status, apierr.JobFailed(id, status.Detail)
		}
	}
	return Status{}, apierr.JobTimeout(id, opts.MaxAttempts)
}

// Fetch writes the artifact of a finished job to w.
type Fetch func(ctx context.Context, id string, status Status, w io.Writer) (int64, error)

// Artifact is a finished job's downloaded output.
type Artifact struct {
	JobID     string
	Path      string
	Bytes     int64
	SourceURL string
}

// Complete runs Await and then fetches the result into dest, enforcing minBytes.
func Complete(ctx context.Context, job Job, fetch Fetch, dest string, minBytes int64, opts Options) (*Artifact, error) {
	opts = opts.withDefaults()

	id, status, err := Await(ctx, job, opts)
	if err != nil {
		return nil, err
	}

	n, err := httpapi.SaveFile(dest, minBytes, func(w io.Writer) (int64, error) {
		return fetch(ctx, id, status, w)
	})
	if err != nil {
		return nil, err
	}
	opts.Observer(Event{Kind: EventFetched, ID: id, Status: status})

	return &Artifact{JobID: id, Path: dest, Bytes: n, SourceURL: status.ArtifactURL}, nil
}

// HTTPFetch streams Status.ArtifactURL into the artifact with the shared client.
func HTTPFetch(client *httpapi.Client) Fetch {
	return func(ctx context.Context, id string, status Status, w io.Writer) (int64, error) {
		if status.ArtifactURL == "" {
			return 0, apierr.JobFailed(id, "job succeeded without an output URL")
		}
		return client.Stream(ctx, status.ArtifactURL, nil, w)
	}
}
