// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package gmail reads, filters and sends mail for the authenticated user.
//
// OAuth client credentials come from GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET
// or from credentials.json in the gmail directory. The refresh token comes
// from GMAIL_REFRESH_TOKEN or from token.json, which auth-code writes.
package gmail

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"ccos/internal/apierr"
	"ccos/internal/config"
	"ccos/internal/googleauth"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "gmail"
	DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

	clientFileName = "credentials.json"
	tokenFileName  = "token.json"
)

// Scopes are requested by auth-url.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/gmail.modify",
}

var (
	supportKeywords = []string{
		"support", "help", "issue", "problem", "bug", "question",
		"inquiry", "contact", "assistance", "trouble",
	}
	investorKeywords = []string{
		"investment", "funding", "investor", "venture", "capital",
		"partnership", "acquisition", "valuation", "pitch", "deck",
	}
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Read, triage and send Gmail",
		Credentials: []platform.Credential{
			{Env: "GMAIL_CLIENT_ID", Optional: true, Help: "or credentials.json in the gmail directory"},
			{Env: "GMAIL_CLIENT_SECRET", Optional: true},
			{Env: "GMAIL_REFRESH_TOKEN", Optional: true, Help: "or token.json written by auth-code"},
		},
		Setup: []string{
			"Go to https://console.cloud.google.com/ and create or select a project",
			"Enable the Gmail API",
			"Create OAuth 2.0 credentials of type Desktop application",
			"Download credentials.json into the gmail directory (config key gmail_dir, default <user config dir>/ccos/gmail)",
			"Run `ccos gmail auth-url`, authorise, then `ccos gmail auth-code code=<CODE>`",
		},
		Actions: []platform.ActionInfo{
			{Name: "profile", Summary: "Address and mailbox totals"},
			{Name: "unread", Summary: "Unread messages", Usage: "[limit=10] [sender=...] [subject=...]"},
			{Name: "filter", Summary: "Messages from the last days matching a query", Usage: "[days=7] [limit=50] [query=...]"},
			{Name: "customer-support", Summary: "Recent messages that look like support requests", Usage: "[days=7] [limit=10]"},
			{Name: "investor-emails", Summary: "Recent messages that look investor related", Usage: "[days=7] [limit=10]"},
			{Name: "send", Summary: "Send a message", Usage: "to=... subject=... body=... [html=true] [reply_to=<message id>]", Required: []string{"to", "subject", "body"}},
			{Name: "mark-read", Summary: "Remove the UNREAD label", Usage: "id=...", Required: []string{"id"}},
			{Name: "auth-url", Summary: "Print the consent URL for manual authorisation"},
			{Name: "auth-code", Summary: "Exchange an authorisation code and store the token", Usage: "code=...", Required: []string{"code"}},
		},
		Open: Open,
	}
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	auth    *googleauth.Source
	env     *platform.Env
}

// Open resolves the OAuth client from the environment or the gmail
// directory. A missing refresh token only fails once an API call needs it.
func Open(env *platform.Env) (platform.Platform, error) {
	dir, err := config.ResolvePath(env.Config.GmailDir)
	if err != nil {
		return nil, apierr.Config("could not resolve gmail directory", err)
	}

	var oauth *oauth2.Config
	if clientID := env.Creds.Get("GMAIL_CLIENT_ID"); clientID != "" {
		oauth = googleauth.NewConfig(clientID, env.Creds.Get("GMAIL_CLIENT_SECRET"), googleauth.TokenURL, Scopes...)
	} else {
		oauth, err = googleauth.LoadClientFile(filepath.Join(dir, clientFileName), Scopes...)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				def := Definition()
				return nil, apierr.MissingCredential(Name, []string{"GMAIL_CLIENT_ID", filepath.Join(dir, clientFileName)}, def.SetupGuide())
			}
			return nil, err
		}
	}
	oauth.Endpoint.TokenURL = env.BaseURL(googleauth.Endpoint, oauth.Endpoint.TokenURL)

	auth := googleauth.NewSource(env.HTTP, oauth, env.Creds.Get("GMAIL_REFRESH_TOKEN"))
	auth.TokenFile = filepath.Join(dir, tokenFileName)
	if !env.Creds.Has("GMAIL_REFRESH_TOKEN") {
		tok, err := googleauth.LoadToken(auth.TokenFile)
		switch {
		case err == nil:
			auth.SetToken(tok)
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	return &Client{
		http:    env.HTTP,
		baseURL: env.BaseURL(Name, DefaultBaseURL),
		auth:    auth,
		env:     env,
	}, nil
}

type UnreadRequest struct {
	Limit   int    `param:"limit" default:"10"`
	Sender  string `param:"sender"`
	Subject string `param:"subject"`
}

type FilterRequest struct {
	Days  int    `param:"days" default:"7"`
	Limit int    `param:"limit" default:"50"`
	Query string `param:"query"`
}

type PresetRequest struct {
	Days  int `param:"days" default:"7"`
	Limit int `param:"limit" default:"10"`
}

type SendRequest struct {
	To      string `param:"to,required"`
	Subject string `param:"subject,required"`
	Body    string `param:"body,required"`
	HTML    bool   `param:"html"`
	ReplyTo string `param:"reply_to"`
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "profile":
		prof, err := c.Profile(ctx)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, prof), nil

	case "unread":
		var req UnreadRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		return c.search(ctx, action, UnreadQuery(req.Sender, req.Subject), req.Limit)

	case "filter":
		var req FilterRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		return c.search(ctx, action, SinceQuery(c.env.Now(), req.Days, req.Query), req.Limit)

	case "customer-support", "investor-emails":
		var req PresetRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		keywords := supportKeywords
		if action == "investor-emails" {
			keywords = investorKeywords
		}
		return c.search(ctx, action, SinceQuery(c.env.Now(), req.Days, SubjectAny(keywords)), req.Limit)

	case "send":
		var req SendRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		sent, err := c.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, sent), nil

	case "mark-read":
		id := p.Get("id")
		if err := c.MarkRead(ctx, id); err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, map[string]string{"id": id})
		res.Text = "marked as read: " + id
		return res, nil

	case "auth-url":
		u := c.auth.AuthCodeURL()
		res := platform.NewResult(Name, action, map[string]string{"url": u})
		res.Text = "Open this URL, authorise, then run: ccos gmail auth-code code=<CODE>\n" + u
		return res, nil

	case "auth-code":
		if _, err := c.auth.Exchange(ctx, p.Get("code")); err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, map[string]string{"token_file": c.auth.TokenFile})
		res.Text = "Gmail authorised; token saved to " + c.auth.TokenFile
		return res, nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

func (c *Client) search(ctx context.Context, action, query string, limit int) (*platform.Result, error) {
	msgs, err := c.List(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return platform.NewResult(Name, action, map[string]any{"query": query, "messages": msgs}), nil
}
