// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package resend sends transactional email through the Resend API.
package resend

import (
	"context"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "resend"
	DefaultBaseURL = "https://api.resend.com"
	defaultFrom    = "onboarding@resend.dev"
)

// Module implements the platform.Module interface for this package.
type Module struct{}

// Register adds the resend definition to the registry.
func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Transactional email via Resend",
		Credentials: []platform.Credential{
			{Env: "RESEND_API_KEY", Help: "API key from resend.com/api-keys"},
			{Env: "RESEND_FROM_EMAIL", Optional: true, Help: "verified sender address"},
		},
		Setup: []string{
			"Create an account at https://resend.com and verify a sending domain",
			"Create an API key with sending access",
		},
		Actions: []platform.ActionInfo{
			{
				Name:     "send",
				Summary:  "Send one email",
				Usage:    "to=a@b.com[,c@d.com] subject=... [html=...] [text=...] [from=...] [reply_to=...]",
				Required: []string{"to", "subject"},
			},
		},
		Open: Open,
	}
}

// SendRequest holds the send parameters.
type SendRequest struct {
	To      []string `param:"to,required"`
	Subject string   `param:"subject,required"`
	HTML    string   `param:"html"`
	Text    string   `param:"text"`
	From    string   `param:"from"`
	ReplyTo string   `param:"reply_to"`
}

type sendBody struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// SendResponse is Resend's reply to a send.
type SendResponse struct {
	ID      string   `json:"id"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
}

// Client talks to the Resend API.
type Client struct {
	http    *httpapi.Client
	baseURL string
	apiKey  string
	from    string
}

func Open(env *platform.Env) (platform.Platform, error) {
	key := env.Creds.Get("RESEND_API_KEY")
	if key == "" {
		def := Definition()
		return nil, apierr.MissingCredential(Name, []string{"RESEND_API_KEY"}, def.SetupGuide())
	}
	from := env.Creds.Get("RESEND_FROM_EMAIL")
	if from == "" {
		from = defaultFrom
	}
	return &Client{
		http:    env.HTTP,
		baseURL: env.BaseURL(Name, DefaultBaseURL),
		apiKey:  key,
		from:    from,
	}, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "send":
		var req SendRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		resp, err := c.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, resp), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

// Send delivers one message. Without html or text a plain-text body equal
// to the subject is sent.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	from := req.From
	if from == "" {
		from = c.from
	}
	body := sendBody{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
		ReplyTo: req.ReplyTo,
	}
	if strings.TrimSpace(body.HTML) == "" && strings.TrimSpace(body.Text) == "" {
		body.Text = req.Subject
	}

	var out SendResponse
	err := c.http.DoJSON(ctx, httpapi.Request{
		URL:         c.baseURL + "/emails",
		JSON:        body,
		BearerToken: c.apiKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.To = req.To
	out.Subject = req.Subject
	return &out, nil
}
