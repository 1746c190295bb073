// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package reddit reads subreddits and submits posts as a script app.
package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "reddit"
	DefaultBaseURL = "https://oauth.reddit.com"
	// AuthEndpoint is the endpoints key for the token host.
	AuthEndpoint   = "reddit-auth"
	DefaultAuthURL = "https://www.reddit.com"
	defaultAgent   = "ccos/1.0"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Reddit listings, search and submissions",
		Credentials: []platform.Credential{
			{Env: "REDDIT_CLIENT_ID"},
			{Env: "REDDIT_CLIENT_SECRET"},
			{Env: "REDDIT_USERNAME"},
			{Env: "REDDIT_PASSWORD"},
			{Env: "REDDIT_USER_AGENT", Optional: true, Help: "e.g. ccos/1.0 by u/yourname"},
		},
		Setup: []string{"Create a script app at https://www.reddit.com/prefs/apps and note its id and secret"},
		Actions: []platform.ActionInfo{
			{Name: "hot", Summary: "Hot posts in a subreddit", Usage: "subreddit=... [limit=10]", Required: []string{"subreddit"}},
			{Name: "search", Summary: "Search posts", Usage: "q=... [subreddit=...] [sort=relevance] [limit=10]", Required: []string{"q"}},
			{Name: "submit", Summary: "Submit a text or link post", Usage: "subreddit=... title=... (text=... | url=...)", Required: []string{"subreddit", "title"}},
		},
		Open: Open,
	}
}

type HotRequest struct {
	Subreddit string `param:"subreddit,required"`
	Limit     int    `param:"limit" default:"10"`
}

type SearchRequest struct {
	Query     string `param:"q,required"`
	Subreddit string `param:"subreddit"`
	Sort      string `param:"sort" default:"relevance"`
	Limit     int    `param:"limit" default:"10"`
}

type SubmitRequest struct {
	Subreddit string `param:"subreddit,required"`
	Title     string `param:"title,required"`
	Text      string `param:"text"`
	URL       string `param:"url"`
}

type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Selftext    string  `json:"selftext,omitempty"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data Post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (l listing) posts() []Post {
	out := make([]Post, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		out = append(out, c.Data)
	}
	return out
}

type Submission struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Client struct {
	http     *httpapi.Client
	baseURL  string
	authURL  string
	clientID string
	secret   string
	username string
	password string
	agent    string

	token string
}

func Open(env *platform.Env) (platform.Platform, error) {
	agent := env.Creds.Get("REDDIT_USER_AGENT")
	if agent == "" {
		agent = defaultAgent
	}
	return &Client{
		http:     env.HTTP,
		baseURL:  env.BaseURL(Name, DefaultBaseURL),
		authURL:  env.BaseURL(AuthEndpoint, DefaultAuthURL),
		clientID: env.Creds.Get("REDDIT_CLIENT_ID"),
		secret:   env.Creds.Get("REDDIT_CLIENT_SECRET"),
		username: env.Creds.Get("REDDIT_USERNAME"),
		password: env.Creds.Get("REDDIT_PASSWORD"),
		agent:    agent,
	}, nil
}

func (c *Client) header() http.Header {
	return http.Header{"User-Agent": {c.agent}}
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	err := c.http.DoJSON(ctx, httpapi.Request{
		URL: c.authURL + "/api/v1/access_token",
		Form: url.Values{
			"grant_type": {"password"},
			"username":   {c.username},
			"password":   {c.password},
		},
		Header:    c.header(),
		BasicUser: c.clientID,
		BasicPass: c.secret,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", apierr.Upstream(Name, "token request failed: "+out.Error)
	}
	c.token = out.AccessToken
	return c.token, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]Post, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	var out listing
	if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + path, Query: q, Header: c.header(), BearerToken: token}, &out); err != nil {
		return nil, err
	}
	return out.posts(), nil
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if (req.Text == "") == (req.URL == "") {
		return nil, apierr.Usage("exactly one of text or url is required", "ccos reddit submit subreddit=... title=... text=...")
	}
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"api_type": {"json"},
		"sr":       {strings.TrimPrefix(req.Subreddit, "r/")},
		"title":    {req.Title},
	}
	if req.URL != "" {
		form.Set("kind", "link")
		form.Set("url", req.URL)
	} else {
		form.Set("kind", "self")
		form.Set("text", req.Text)
	}

	var out struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   Submission `json:"data"`
		} `json:"json"`
	}
	if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + "/api/submit", Form: form, Header: c.header(), BearerToken: token}, &out); err != nil {
		return nil, err
	}
	if len(out.JSON.Errors) > 0 {
		return nil, apierr.Upstream(Name, strings.Join(out.JSON.Errors[0], ": "))
	}
	return &out.JSON.Data, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "hot":
		var req HotRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		posts, err := c.get(ctx, fmt.Sprintf("/r/%s/hot", strings.TrimPrefix(req.Subreddit, "r/")), url.Values{"limit": {strconv.Itoa(req.Limit)}})
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, posts), nil

	case "search":
		var req SearchRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		path := "/search"
		q := url.Values{"q": {req.Query}, "sort": {req.Sort}, "limit": {strconv.Itoa(req.Limit)}}
		if req.Subreddit != "" {
			path = fmt.Sprintf("/r/%s/search", strings.TrimPrefix(req.Subreddit, "r/"))
			q.Set("restrict_sr", "1")
		}
		posts, err := c.get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, posts), nil

	case "submit":
		var req SubmitRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		sub, err := c.Submit(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, sub), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
