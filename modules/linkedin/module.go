// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package linkedin reads the member profile and shares text posts.
package linkedin

import (
	"context"
	"net/http"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "linkedin"
	DefaultBaseURL = "https://api.linkedin.com/v2"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "LinkedIn profile and posting",
		Credentials: []platform.Credential{
			{Env: "LINKEDIN_ACCESS_TOKEN", Help: "OAuth token with openid, profile and w_member_social"},
			{Env: "LINKEDIN_AUTHOR_URN", Optional: true, Help: "urn:li:person:... or urn:li:organization:..."},
		},
		Setup: []string{
			"Create an app at https://www.linkedin.com/developers and add Sign In with LinkedIn and Share on LinkedIn",
			"Generate an access token from the app's Auth tab",
		},
		Actions: []platform.ActionInfo{
			{Name: "profile", Summary: "The authenticated member"},
			{Name: "post", Summary: "Share a text post", Usage: "text=... [visibility=PUBLIC] [author=urn:li:...]", Required: []string{"text"}},
		},
		Open: Open,
	}
}

type PostRequest struct {
	Text       string `param:"text,required"`
	Visibility string `param:"visibility" default:"PUBLIC"`
	Author     string `param:"author"`
}

// Profile is the OpenID userinfo of the member.
type Profile struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// URN is the member's person URN.
func (p Profile) URN() string {
	return "urn:li:person:" + p.Sub
}

type shareContent struct {
	ShareCommentary struct {
		Text string `json:"text"`
	} `json:"shareCommentary"`
	ShareMediaCategory string `json:"shareMediaCategory"`
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type Post struct {
	ID     string `json:"id"`
	Author string `json:"author"`
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	token   string
	author  string
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{
		http:    env.HTTP,
		baseURL: env.BaseURL(Name, DefaultBaseURL),
		token:   env.Creds.Get("LINKEDIN_ACCESS_TOKEN"),
		author:  env.Creds.Get("LINKEDIN_AUTHOR_URN"),
	}, nil
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + "/userinfo", BearerToken: c.token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Post(ctx context.Context, req PostRequest) (*Post, error) {
	author := req.Author
	if author == "" {
		author = c.author
	}
	if author == "" {
		prof, err := c.Profile(ctx)
		if err != nil {
			return nil, err
		}
		if prof.Sub == "" {
			return nil, apierr.Upstream(Name, "userinfo returned no member id")
		}
		author = prof.URN()
	}

	var content shareContent
	content.ShareCommentary.Text = req.Text
	content.ShareMediaCategory = "NONE"
	body := ugcPost{
		Author:          author,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]shareContent{"com.linkedin.ugc.ShareContent": content},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": strings.ToUpper(req.Visibility)},
	}

	resp, err := c.http.Do(ctx, httpapi.Request{
		URL:         c.baseURL + "/ugcPosts",
		JSON:        body,
		BearerToken: c.token,
		Header:      http.Header{"X-Restli-Protocol-Version": {"2.0.0"}},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = resp.Header.Get("X-Restli-Id")
	}
	return &Post{ID: out.ID, Author: author}, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "profile":
		prof, err := c.Profile(ctx)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, prof), nil

	case "post":
		var req PostRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		post, err := c.Post(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, post), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
