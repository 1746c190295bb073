// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package mubert generates royalty-free background music tracks.
package mubert

import (
	"context"
	"net/http"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "mubert"
	DefaultBaseURL = "https://music-api.mubert.com/api/v3/public"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "AI generated music tracks",
		Credentials: []platform.Credential{
			{Env: "MUBERT_CUSTOMER_ID"},
			{Env: "MUBERT_ACCESS_TOKEN"},
		},
		Setup: []string{"Request API access at https://mubert.com/render/api and copy the customer id and access token"},
		Actions: []platform.ActionInfo{
			{
				Name:    "generate",
				Summary: "Generate a track and download it",
				Usage:   "[prompt=...] [playlist=1.0.0] [duration=60] [intensity=medium] [format=mp3] [bitrate=128] [mode=track]",
				Async:   true,
			},
			{Name: "status", Summary: "Check a track once", Usage: "id=...", Required: []string{"id"}},
		},
		Open: Open,
	}
}

// GenerateRequest describes a track. A prompt switches generation from the
// playlist channel to text-to-music.
type GenerateRequest struct {
	Prompt    string `param:"prompt"`
	Playlist  string `param:"playlist" default:"1.0.0"`
	Duration  int    `param:"duration" default:"60"`
	Intensity string `param:"intensity" default:"medium"`
	Format    string `param:"format" default:"mp3"`
	Bitrate   int    `param:"bitrate" default:"128"`
	Mode      string `param:"mode" default:"track"`
}

type generateBody struct {
	Prompt        string `json:"prompt,omitempty"`
	PlaylistIndex string `json:"playlist_index,omitempty"`
	Duration      int    `json:"duration"`
	Bitrate       int    `json:"bitrate"`
	Format        string `json:"format"`
	Intensity     string `json:"intensity"`
	Mode          string `json:"mode"`
}

type Generation struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// Track is the state of a generated track.
type Track struct {
	ID          string       `json:"id"`
	Duration    int          `json:"duration"`
	Intensity   string       `json:"intensity"`
	Generations []Generation `json:"generations"`
}

func (t Track) status() jobs.Status {
	if len(t.Generations) == 0 {
		return jobs.Status{State: jobs.Pending, Detail: "queued"}
	}
	g := t.Generations[0]
	st := jobs.Status{Detail: g.Status, ArtifactURL: g.URL}
	switch strings.ToLower(g.Status) {
	case "done":
		st.State = jobs.Succeeded
	case "failed", "error":
		st.State = jobs.Failed
	default:
		st.State = jobs.Pending
	}
	return st
}

type envelope struct {
	Data  Track `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	http       *httpapi.Client
	baseURL    string
	customerID string
	token      string
	env        *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{
		http:       env.HTTP,
		baseURL:    env.BaseURL(Name, DefaultBaseURL),
		customerID: env.Creds.Get("MUBERT_CUSTOMER_ID"),
		token:      env.Creds.Get("MUBERT_ACCESS_TOKEN"),
		env:        env,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any) (*Track, error) {
	var out envelope
	err := c.http.DoJSON(ctx, httpapi.Request{
		Method: method,
		URL:    c.baseURL + path,
		JSON:   body,
		Header: http.Header{"customer-id": {c.customerID}, "access-token": {c.token}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, apierr.Upstream(Name, out.Error.Message)
	}
	return &out.Data, nil
}

func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	return c.call(ctx, http.MethodGet, "/tracks/"+id, nil)
}

type trackJob struct {
	c   *Client
	req GenerateRequest
}

func (j *trackJob) Submit(ctx context.Context) (string, error) {
	body := generateBody{
		Prompt:        j.req.Prompt,
		PlaylistIndex: j.req.Playlist,
		Duration:      j.req.Duration,
		Bitrate:       j.req.Bitrate,
		Format:        j.req.Format,
		Intensity:     j.req.Intensity,
		Mode:          j.req.Mode,
	}
	if body.Prompt != "" {
		body.PlaylistIndex = ""
	}
	t, err := j.c.call(ctx, http.MethodPost, "/tracks", body)
	if err != nil {
		return "", err
	}
	if t.ID == "" {
		return "", apierr.Upstream(Name, "track created without an id")
	}
	return t.ID, nil
}

func (j *trackJob) Poll(ctx context.Context, id string) (jobs.Status, error) {
	t, err := j.c.Track(ctx, id)
	if err != nil {
		return jobs.Status{}, err
	}
	return t.status(), nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "generate":
		var req GenerateRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		dest := c.env.ArtifactPath(Name, req.Intensity+"-"+req.Playlist, req.Format)
		art, err := jobs.Complete(ctx, &trackJob{c: c, req: req}, jobs.HTTPFetch(c.http), dest, c.env.MinBytes, c.env.Jobs)
		if err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, map[string]string{"track_id": art.JobID})
		res.Artifacts = []platform.Artifact{{Path: art.Path, Bytes: art.Bytes, ContentType: "audio/" + req.Format, SourceURL: art.SourceURL}}
		return res, nil

	case "status":
		t, err := c.Track(ctx, p.Get("id"))
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, t), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
