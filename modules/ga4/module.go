// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package ga4 runs Google Analytics 4 Data API reports.
package ga4

import (
	"context"
	"strconv"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/googleauth"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "ga4"
	DefaultBaseURL = "https://analyticsdata.googleapis.com/v1beta"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Google Analytics 4 reports",
		Credentials: []platform.Credential{
			{Env: "GA4_PROPERTY_ID", Help: "Admin > Property settings"},
			{Env: "GOOGLE_CLIENT_ID"},
			{Env: "GOOGLE_CLIENT_SECRET"},
			{Env: "GOOGLE_REFRESH_TOKEN", Help: "OAuth refresh token with analytics.readonly scope"},
		},
		Setup: []string{
			"Enable the Google Analytics Data API in a Google Cloud project",
			"Create an OAuth desktop client and authorise it with the analytics.readonly scope",
			"Copy the numeric property id from the GA4 admin screen",
		},
		Actions: []platform.ActionInfo{
			{Name: "report", Summary: "Run a report over a date range", Usage: "[days=7] [metrics=activeUsers,sessions] [dimensions=date] [limit=100]"},
			{Name: "realtime", Summary: "Users active in the last 30 minutes", Usage: "[metrics=activeUsers] [dimensions=]"},
		},
		Open: Open,
	}
}

type ReportRequest struct {
	Days       int    `param:"days" default:"7"`
	Metrics    string `param:"metrics" default:"activeUsers,sessions"`
	Dimensions string `param:"dimensions" default:"date"`
	Limit      int    `param:"limit" default:"100"`
}

type RealtimeRequest struct {
	Metrics    string `param:"metrics" default:"activeUsers"`
	Dimensions string `param:"dimensions"`
}

type named struct {
	Name string `json:"name"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type reportBody struct {
	DateRanges []dateRange `json:"dateRanges,omitempty"`
	Metrics    []named     `json:"metrics"`
	Dimensions []named     `json:"dimensions,omitempty"`
	Limit      string      `json:"limit,omitempty"`
}

type value struct {
	Value string `json:"value"`
}

type reportResponse struct {
	DimensionHeaders []named `json:"dimensionHeaders"`
	MetricHeaders    []named `json:"metricHeaders"`
	Rows             []struct {
		DimensionValues []value `json:"dimensionValues"`
		MetricValues    []value `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
}

// Report is a report with each row flattened into header → value.
type Report struct {
	Rows     []map[string]string `json:"rows"`
	RowCount int                 `json:"row_count"`
}

func names(csv string) []named {
	var out []named
	for _, n := range strings.Split(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, named{Name: n})
		}
	}
	return out
}

func (r reportResponse) flatten() *Report {
	rep := &Report{RowCount: r.RowCount, Rows: make([]map[string]string, 0, len(r.Rows))}
	for _, row := range r.Rows {
		m := make(map[string]string, len(row.DimensionValues)+len(row.MetricValues))
		for i, v := range row.DimensionValues {
			if i < len(r.DimensionHeaders) {
				m[r.DimensionHeaders[i].Name] = v.Value
			}
		}
		for i, v := range row.MetricValues {
			if i < len(r.MetricHeaders) {
				m[r.MetricHeaders[i].Name] = v.Value
			}
		}
		rep.Rows = append(rep.Rows, m)
	}
	return rep
}

type Client struct {
	http     *httpapi.Client
	baseURL  string
	property string
	auth     *googleauth.Source
}

func Open(env *platform.Env) (platform.Platform, error) {
	cfg := googleauth.NewConfig(env.Creds.Get("GOOGLE_CLIENT_ID"), env.Creds.Get("GOOGLE_CLIENT_SECRET"),
		env.BaseURL(googleauth.Endpoint, googleauth.TokenURL))
	auth := googleauth.NewSource(env.HTTP, cfg, env.Creds.Get("GOOGLE_REFRESH_TOKEN"))
	return &Client{
		http:     env.HTTP,
		baseURL:  env.BaseURL(Name, DefaultBaseURL),
		property: strings.TrimPrefix(env.Creds.Get("GA4_PROPERTY_ID"), "properties/"),
		auth:     auth,
	}, nil
}

func (c *Client) run(ctx context.Context, method string, body reportBody) (*Report, error) {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	var out reportResponse
	err = c.http.DoJSON(ctx, httpapi.Request{
		URL:         c.baseURL + "/properties/" + c.property + ":" + method,
		JSON:        body,
		BearerToken: token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.flatten(), nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "report":
		var req ReportRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		if req.Days < 1 {
			return nil, apierr.Usage("days must be at least 1", "")
		}
		rep, err := c.run(ctx, "runReport", reportBody{
			DateRanges: []dateRange{{StartDate: strconv.Itoa(req.Days) + "daysAgo", EndDate: "today"}},
			Metrics:    names(req.Metrics),
			Dimensions: names(req.Dimensions),
			Limit:      strconv.Itoa(req.Limit),
		})
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, rep), nil

	case "realtime":
		var req RealtimeRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		rep, err := c.run(ctx, "runRealtimeReport", reportBody{Metrics: names(req.Metrics), Dimensions: names(req.Dimensions)})
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, rep), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
