// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package newsapi searches headlines and articles on newsapi.org.
package newsapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "newsapi"
	DefaultBaseURL = "https://newsapi.org/v2"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:        Name,
		Summary:     "News headlines and article search",
		Credentials: []platform.Credential{{Env: "NEWSAPI_KEY", Help: "key from newsapi.org/account"}},
		Setup:       []string{"Register at https://newsapi.org/register to get a key"},
		Actions: []platform.ActionInfo{
			{Name: "headlines", Summary: "Top headlines", Usage: "[country=us] [category=...] [q=...] [page_size=20]"},
			{Name: "search", Summary: "Search all articles", Usage: "q=... [from=YYYY-MM-DD] [sort_by=publishedAt] [page_size=20] [language=en]", Required: []string{"q"}},
		},
		Open: Open,
	}
}

type HeadlinesRequest struct {
	Country  string `param:"country" default:"us"`
	Category string `param:"category"`
	Query    string `param:"q"`
	PageSize int    `param:"page_size" default:"20"`
}

type SearchRequest struct {
	Query    string `param:"q,required"`
	From     string `param:"from"`
	SortBy   string `param:"sort_by" default:"publishedAt"`
	PageSize int    `param:"page_size" default:"20"`
	Language string `param:"language" default:"en"`
}

type Article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

type Articles struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	key     string
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{http: env.HTTP, baseURL: env.BaseURL(Name, DefaultBaseURL), key: env.Creds.Get("NEWSAPI_KEY")}, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	var (
		path string
		q    = url.Values{}
	)
	switch action {
	case "headlines":
		var req HeadlinesRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		path = "/top-headlines"
		q.Set("country", req.Country)
		if req.Category != "" {
			q.Set("category", req.Category)
		}
		if req.Query != "" {
			q.Set("q", req.Query)
		}
		q.Set("pageSize", strconv.Itoa(clampPageSize(req.PageSize)))
	case "search":
		var req SearchRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		path = "/everything"
		q.Set("q", req.Query)
		if req.From != "" {
			q.Set("from", req.From)
		}
		q.Set("sortBy", req.SortBy)
		q.Set("language", req.Language)
		q.Set("pageSize", strconv.Itoa(clampPageSize(req.PageSize)))
	default:
		return nil, apierr.Usage("unknown action "+action, "")
	}

	var out Articles
	err := c.http.DoJSON(ctx, httpapi.Request{
		URL:    c.baseURL + path,
		Query:  q,
		Header: map[string][]string{"X-Api-Key": {c.key}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status == "error" {
		return nil, apierr.Upstream(Name, fmt.Sprintf("%s: %s", out.Code, out.Message))
	}
	return platform.NewResult(Name, action, out), nil
}

func clampPageSize(n int) int {
	switch {
	case n < 1:
		return 20
	case n > 100:
		return 100
	}
	return n
}
