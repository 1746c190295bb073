// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package grants searches federal funding opportunities on Grants.gov.
// The API is public and needs no credentials.
package grants

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "grants"
	DefaultBaseURL = "https://api.grants.gov"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Federal grant opportunities from Grants.gov",
		Setup:   []string{"No credentials needed"},
		Actions: []platform.ActionInfo{
			{Name: "search", Summary: "Search opportunities", Usage: "[keyword=...] [rows=25] [status=forecasted|posted] [agencies=HHS|NSF]"},
			{Name: "opportunity", Summary: "Full details of one opportunity", Usage: "id=...", Required: []string{"id"}},
		},
		Open: Open,
	}
}

type SearchRequest struct {
	Keyword  string `param:"keyword"`
	Rows     int    `param:"rows" default:"25"`
	Status   string `param:"status" default:"forecasted|posted"`
	Agencies string `param:"agencies"`
}

type searchBody struct {
	Keyword     string `json:"keyword,omitempty"`
	Rows        int    `json:"rows"`
	OppStatuses string `json:"oppStatuses"`
	Agencies    string `json:"agencies,omitempty"`
}

type Opportunity struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	Title      string `json:"title"`
	AgencyCode string `json:"agencyCode"`
	Agency     string `json:"agency"`
	OpenDate   string `json:"openDate"`
	CloseDate  string `json:"closeDate"`
	Status     string `json:"oppStatus"`
}

type SearchResult struct {
	HitCount int           `json:"hitCount"`
	Hits     []Opportunity `json:"oppHits"`
}

type envelope struct {
	ErrorCode int             `json:"errorcode"`
	Msg       string          `json:"msg"`
	Data      json.RawMessage `json:"data"`
}

type Client struct {
	http    *httpapi.Client
	baseURL string
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{http: env.HTTP, baseURL: env.BaseURL(Name, DefaultBaseURL)}, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "search":
		var req SearchRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		if req.Rows < 1 {
			req.Rows = 25
		}
		var out SearchResult
		err := c.call(ctx, "/v1/api/search2", searchBody{
			Keyword:     req.Keyword,
			Rows:        req.Rows,
			OppStatuses: strings.ReplaceAll(req.Status, ",", "|"),
			Agencies:    strings.ReplaceAll(req.Agencies, ",", "|"),
		}, &out)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out), nil

	case "opportunity":
		id, err := strconv.Atoi(p.Get("id"))
		if err != nil {
			return nil, apierr.Usage("id must be the numeric opportunity id", "id=123456")
		}
		var out map[string]any
		if err := c.call(ctx, "/v1/api/fetchOpportunity", map[string]int{"opportunityId": id}, &out); err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

func (c *Client) call(ctx context.Context, path string, body any, out any) error {
	var env envelope
	if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + path, JSON: body}, &env); err != nil {
		return err
	}
	if env.ErrorCode != 0 {
		return apierr.Upstream(Name, env.Msg)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apierr.Decode("grants.gov data", err)
	}
	return nil
}
