// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package openai wraps chat completions and image generation.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
)

const blogSystemPrompt = `You are a senior content writer. Write engaging, accurate blog posts in
markdown with a title, short introduction, descriptive subheadings and a
concluding call to action. Avoid filler and unverifiable statistics.`

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:        Name,
		Summary:     "Text and image generation with OpenAI",
		Credentials: []platform.Credential{{Env: "OPENAI_API_KEY", Help: "platform.openai.com/api-keys"}},
		Setup:       []string{"Create a secret key at https://platform.openai.com/api-keys"},
		Actions: []platform.ActionInfo{
			{Name: "chat", Summary: "One chat completion", Usage: "prompt=... [system=...] [model=gpt-4o-mini] [max_tokens=1024]", Required: []string{"prompt"}},
			{Name: "blog", Summary: "Draft a blog post", Usage: "topic=... [audience=...] [words=800] [model=gpt-4o-mini]", Required: []string{"topic"}},
			{Name: "image", Summary: "Generate an image into the artifacts directory", Usage: "prompt=... [size=1024x1024] [model=dall-e-3]", Required: []string{"prompt"}},
		},
		Open: Open,
	}
}

type ChatRequest struct {
	Prompt    string `param:"prompt,required"`
	System    string `param:"system"`
	Model     string `param:"model" default:"gpt-4o-mini"`
	MaxTokens int    `param:"max_tokens" default:"1024"`
}

type BlogRequest struct {
	Topic    string `param:"topic,required"`
	Audience string `param:"audience"`
	Words    int    `param:"words" default:"800"`
	Model    string `param:"model" default:"gpt-4o-mini"`
}

type ImageRequest struct {
	Prompt string `param:"prompt,required"`
	Size   string `param:"size" default:"1024x1024"`
	Model  string `param:"model" default:"dall-e-3"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the data returned for chat and blog.
type Completion struct {
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

type imageBody struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	key     string
	env     *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{http: env.HTTP, baseURL: env.BaseURL(Name, DefaultBaseURL), key: env.Creds.Get("OPENAI_API_KEY"), env: env}, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "chat":
		var req ChatRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		out, err := c.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, out)
		res.Text = out.Content
		return res, nil

	case "blog":
		var req BlogRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		prompt := fmt.Sprintf("Write a blog post of about %d words on: %s", req.Words, req.Topic)
		if req.Audience != "" {
			prompt += "\nTarget audience: " + req.Audience
		}
		out, err := c.Chat(ctx, ChatRequest{Prompt: prompt, System: blogSystemPrompt, Model: req.Model, MaxTokens: req.Words * 2})
		if err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, out)
		res.Text = out.Content
		return res, nil

	case "image":
		var req ImageRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		return c.Image(ctx, req)
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Completion, error) {
	body := chatBody{Model: req.Model, MaxTokens: req.MaxTokens}
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: req.Prompt})

	var out chatResponse
	if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + "/chat/completions", JSON: body, BearerToken: c.key}, &out); err != nil {
		return nil, err
	}
	comp := &Completion{Model: out.Model, Usage: out.Usage}
	if len(out.Choices) > 0 {
		comp.Content = strings.TrimSpace(out.Choices[0].Message.Content)
		comp.FinishReason = out.Choices[0].FinishReason
	}
	return comp, nil
}

func (c *Client) Image(ctx context.Context, req ImageRequest) (*platform.Result, error) {
	var out imageResponse
	err := c.http.DoJSON(ctx, httpapi.Request{
		URL:         c.baseURL + "/images/generations",
		JSON:        imageBody{Model: req.Model, Prompt: req.Prompt, Size: req.Size, N: 1, ResponseFormat: "b64_json"},
		BearerToken: c.key,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, apierr.Upstream(Name, "no image in response")
	}

	img := out.Data[0]
	dest := c.env.ArtifactPath(Name, req.Prompt, "png")
	var art platform.Artifact
	switch {
	case img.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, apierr.Decode("image data", err)
		}
		art, err = c.env.SaveArtifact(dest, data, "image/png")
		if err != nil {
			return nil, err
		}
	case img.URL != "":
		n, err := c.http.Download(ctx, img.URL, dest, c.env.MinBytes, nil)
		if err != nil {
			return nil, err
		}
		art = platform.Artifact{Path: dest, Bytes: n, ContentType: "image/png", SourceURL: img.URL}
	default:
		return nil, apierr.Upstream(Name, "image has neither data nor url")
	}

	res := platform.NewResult(Name, "image", map[string]string{"revised_prompt": img.RevisedPrompt})
	res.Artifacts = []platform.Artifact{art}
	return res, nil
}
