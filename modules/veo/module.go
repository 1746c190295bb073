// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package veo generates video with Google's Veo models through the Gemini API.
package veo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"google.golang.org/genai"

	"ccos/internal/apierr"
	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/retry"
)

const (
	Name           = "veo"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "veo-3.0-generate-001"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Text-to-video generation with Google Veo",
		Credentials: []platform.Credential{
			{AnyOf: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, Help: "aistudio.google.com/apikey"},
		},
		Setup: []string{
			"Create a Gemini API key at https://aistudio.google.com/apikey",
			"Veo requires a billing-enabled project",
		},
		Actions: []platform.ActionInfo{
			{
				Name:     "video",
				Summary:  "Generate a video and download it",
				Usage:    "prompt=... [model=" + DefaultModel + "] [aspect_ratio=16:9] [negative_prompt=...]",
				Required: []string{"prompt"},
				Async:    true,
			},
		},
		Open: Open,
	}
}

type VideoRequest struct {
	Prompt         string `param:"prompt,required"`
	Model          string `param:"model" default:"veo-3.0-generate-001"`
	AspectRatio    string `param:"aspect_ratio" default:"16:9"`
	NegativePrompt string `param:"negative_prompt"`
}

// videoAPI is the slice of the Gemini SDK the module uses.
type videoAPI interface {
	Generate(ctx context.Context, req VideoRequest) (*genai.GenerateVideosOperation, error)
	Refresh(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, v *genai.GeneratedVideo) ([]byte, error)
}

type sdkAPI struct {
	client *genai.Client
}

func (s sdkAPI) Generate(ctx context.Context, req VideoRequest) (*genai.GenerateVideosOperation, error) {
	return s.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, nil, &genai.GenerateVideosConfig{
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
		NumberOfVideos: 1,
	})
}

func (s sdkAPI) Refresh(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return s.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (s sdkAPI) Download(ctx context.Context, v *genai.GeneratedVideo) ([]byte, error) {
	return s.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(v), nil)
}

type Client struct {
	api videoAPI
	env *platform.Env
}

// classify recodes SDK failures into the shared error classes so that 429,
// 5xx and network failures are retried.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = apiErr.Status
		}
		return apierr.HTTPStatus(apiErr.Code, []byte(body))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apierr.Transport(err)
	}
	return apierr.Upstream(Name, err.Error())
}

func Open(env *platform.Env) (platform.Platform, error) {
	key := env.Creds.Get("GEMINI_API_KEY")
	if key == "" {
		key = env.Creds.Get("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, apierr.MissingCredential(Name, []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, "")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  env.HTTP.HTTP,
		HTTPOptions: genai.HTTPOptions{BaseURL: env.BaseURL(Name, DefaultBaseURL) + "/"},
	})
	if err != nil {
		return nil, apierr.Config("could not create Gemini client", err)
	}
	return &Client{api: sdkAPI{client: client}, env: env}, nil
}

// videoJob tracks one long-running operation. The SDK polls by operation
// value, so the latest copy is kept between polls.
type videoJob struct {
	api    videoAPI
	req    VideoRequest
	policy retry.Policy

	mu sync.Mutex
	op *genai.GenerateVideosOperation
}

// call runs one SDK request under the shared retry policy.
func (j *videoJob) call(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.Do(ctx, j.policy, func(ctx context.Context) error {
		return classify(ctx, op(ctx))
	})
}

func (j *videoJob) Submit(ctx context.Context) (string, error) {
	var op *genai.GenerateVideosOperation
	err := j.call(ctx, func(ctx context.Context) error {
		var err error
		op, err = j.api.Generate(ctx, j.req)
		return err
	})
	if err != nil {
		return "", err
	}
	if op == nil || op.Name == "" {
		return "", apierr.Upstream(Name, "operation created without a name")
	}
	j.mu.Lock()
	j.op = op
	j.mu.Unlock()
	return op.Name, nil
}

func (j *videoJob) Poll(ctx context.Context, id string) (jobs.Status, error) {
	j.mu.Lock()
	op := j.op
	j.mu.Unlock()

	if !op.Done {
		var next *genai.GenerateVideosOperation
		err := j.call(ctx, func(ctx context.Context) error {
			var err error
			next, err = j.api.Refresh(ctx, op)
			return err
		})
		if err != nil {
			return jobs.Status{}, err
		}
		if next == nil {
			return jobs.Status{}, apierr.Upstream(Name, "operation "+id+" vanished")
		}
		op = next
		j.mu.Lock()
		j.op = op
		j.mu.Unlock()
	}
	return operationStatus(op), nil
}

func operationStatus(op *genai.GenerateVideosOperation) jobs.Status {
	switch {
	case !op.Done:
		return jobs.Status{State: jobs.Pending, Detail: "running"}
	case len(op.Error) > 0:
		return jobs.Status{State: jobs.Failed, Detail: fmt.Sprint(op.Error["message"])}
	}
	gv := firstVideo(op)
	if gv == nil {
		detail := "no video generated"
		if op.Response != nil && len(op.Response.RAIMediaFilteredReasons) > 0 {
			detail = op.Response.RAIMediaFilteredReasons[0]
		}
		return jobs.Status{State: jobs.Failed, Detail: detail}
	}
	return jobs.Status{State: jobs.Succeeded, Detail: "done", Progress: 1, ArtifactURL: gv.Video.URI}
}

// firstVideo returns the first generated video, or nil when it or its payload is absent.
func firstVideo(op *genai.GenerateVideosOperation) *genai.GeneratedVideo {
	if op == nil || op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil
	}
	gv := op.Response.GeneratedVideos[0]
	if gv == nil || gv.Video == nil {
		return nil
	}
	return gv
}

func (j *videoJob) fetch(ctx context.Context, id string, _ jobs.Status, w io.Writer) (int64, error) {
	j.mu.Lock()
	gv := firstVideo(j.op)
	j.mu.Unlock()
	if gv == nil {
		return 0, apierr.JobFailed(id, "no video generated")
	}

	data := gv.Video.VideoBytes
	if len(data) == 0 {
		err := j.call(ctx, func(ctx context.Context) error {
			var err error
			data, err = j.api.Download(ctx, gv)
			return err
		})
		if err != nil {
			return 0, err
		}
	}
	n, err := w.Write(data)
	return int64(n), err
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "video":
		var req VideoRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		job := &videoJob{api: c.api, req: req, policy: c.env.HTTP.Policy}
		dest := c.env.ArtifactPath(Name, req.Prompt, "mp4")
		art, err := jobs.Complete(ctx, job, job.fetch, dest, c.env.MinBytes, c.env.Jobs)
		if err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, map[string]string{"operation": art.JobID, "model": req.Model})
		res.Artifacts = []platform.Artifact{{Path: art.Path, Bytes: art.Bytes, ContentType: "video/mp4", SourceURL: art.SourceURL}}
		return res, nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
