// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package runway generates video from an image with Runway's task API.
package runway

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
	Name           = "runway"
	DefaultBaseURL = "https://api.dev.runwayml.com/v1"
	apiVersion     = "2024-11-06"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:        Name,
		Summary:     "Image-to-video generation with Runway",
		Credentials: []platform.Credential{{Env: "RUNWAYML_API_SECRET", Help: "dev.runwayml.com > API keys"}},
		Setup:       []string{"Create an API key at https://dev.runwayml.com and add credits to the organisation"},
		Actions: []platform.ActionInfo{
			{
				Name:     "video",
				Summary:  "Generate a video and download it",
				Usage:    "prompt_image=https://... [prompt_text=...] [model=gen4_turbo] [duration=5] [ratio=1280:720]",
				Required: []string{"prompt_image"},
				Async:    true,
			},
			{Name: "status", Summary: "Check a task once", Usage: "id=...", Required: []string{"id"}},
		},
		Open: Open,
	}
}

type VideoRequest struct {
	PromptImage string `param:"prompt_image,required"`
	PromptText  string `param:"prompt_text"`
	Model       string `param:"model" default:"gen4_turbo"`
	Duration    int    `param:"duration" default:"5"`
	Ratio       string `param:"ratio" default:"1280:720"`
}

type videoBody struct {
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Model       string `json:"model"`
	Duration    int    `json:"duration"`
	Ratio       string `json:"ratio"`
}

// Task is the state of a Runway task.
type Task struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Progress    float64  `json:"progress"`
	Output      []string `json:"output"`
	Failure     string   `json:"failure"`
	FailureCode string   `json:"failureCode"`
}

// State maps Runway's status onto the job states.
func (t Task) State() jobs.State {
	switch strings.ToUpper(t.Status) {
	case "SUCCEEDED":
		return jobs.Succeeded
	case "FAILED", "CANCELLED":
		return jobs.Failed
	}
	return jobs.Pending
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	key     string
	env     *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{http: env.HTTP, baseURL: env.BaseURL(Name, DefaultBaseURL), key: env.Creds.Get("RUNWAYML_API_SECRET"), env: env}, nil
}

func (c *Client) request(method, path string, body any) httpapi.Request {
	return httpapi.Request{
		Method:      method,
		URL:         c.baseURL + path,
		JSON:        body,
		BearerToken: c.key,
		Header:      http.Header{"X-Runway-Version": {apiVersion}},
	}
}

func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := c.http.DoJSON(ctx, c.request(http.MethodGet, "/tasks/"+id, nil), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// videoJob adapts one image_to_video task to jobs.Job.
type videoJob struct {
	c   *Client
	req VideoRequest
}

func (j *videoJob) Submit(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := j.c.http.DoJSON(ctx, j.c.request(http.MethodPost, "/image_to_video", videoBody{
		PromptImage: j.req.PromptImage,
		PromptText:  j.req.PromptText,
		Model:       j.req.Model,
		Duration:    j.req.Duration,
		Ratio:       j.req.Ratio,
	}), &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apierr.Upstream(Name, "task created without an id")
	}
	return out.ID, nil
}

func (j *videoJob) Poll(ctx context.Context, id string) (jobs.Status, error) {
	t, err := j.c.Task(ctx, id)
	if err != nil {
		return jobs.Status{}, err
	}
	st := jobs.Status{State: t.State(), Progress: t.Progress, Detail: t.Status}
	if st.State == jobs.Failed {
		st.Detail = strings.TrimSpace(t.FailureCode + " " + t.Failure)
	}
	if len(t.Output) > 0 {
		st.ArtifactURL = t.Output[0]
	}
	return st, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "video":
		var req VideoRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		stem := req.PromptText
		if stem == "" {
			stem = "video"
		}
		dest := c.env.ArtifactPath(Name, stem, "mp4")
		art, err := jobs.Complete(ctx, &videoJob{c: c, req: req}, jobs.HTTPFetch(c.http), dest, c.env.MinBytes, c.env.Jobs)
		if err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, map[string]string{"task_id": art.JobID})
		res.Artifacts = []platform.Artifact{{Path: art.Path, Bytes: art.Bytes, ContentType: "video/mp4", SourceURL: art.SourceURL}}
		return res, nil

	case "status":
		t, err := c.Task(ctx, p.Get("id"))
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, t), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
