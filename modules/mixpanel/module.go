// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package mixpanel tracks events and queries event segmentation.
package mixpanel

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name = "mixpanel"
	// QueryEndpoint is the endpoints key for the query API host.
	QueryEndpoint   = "mixpanel-query"
	DefaultTrackURL = "https://api.mixpanel.com"
	DefaultQueryURL = "https://mixpanel.com/api"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

var (
	projectToken   = platform.Credential{Env: "MIXPANEL_PROJECT_TOKEN", Help: "Project settings > Project token"}
	serviceAccount = []platform.Credential{
		{Env: "MIXPANEL_SERVICE_ACCOUNT", Help: "service account username"},
		{Env: "MIXPANEL_SERVICE_SECRET", Help: "service account secret"},
		{Env: "MIXPANEL_PROJECT_ID", Help: "numeric project id"},
	}
)

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Product analytics events and segmentation",
		Setup: []string{
			"Tracking needs only the project token",
			"Queries need a service account: Organization settings > Service accounts",
		},
		Actions: []platform.ActionInfo{
			{
				Name:        "track",
				Summary:     "Send one event",
				Usage:       "event=... [distinct_id=...] [props=k:v,k2:v2]",
				Required:    []string{"event"},
				Credentials: []platform.Credential{projectToken},
			},
			{
				Name:        "segmentation",
				Summary:     "Event counts over time",
				Usage:       "event=... [days=7] [unit=day]",
				Required:    []string{"event"},
				Credentials: serviceAccount,
			},
		},
		Open: Open,
	}
}

type TrackRequest struct {
	Event      string   `param:"event,required"`
	DistinctID string   `param:"distinct_id" default:"ccos"`
	Props      []string `param:"props"`
}

type SegmentationRequest struct {
	Event string `param:"event,required"`
	Days  int    `param:"days" default:"7"`
	Unit  string `param:"unit" default:"day"`
}

type trackEvent struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

type trackResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

type TrackResult struct {
	Event    string `json:"event"`
	InsertID string `json:"insert_id"`
}

// Segmentation is the query API's answer: series dates and values per event.
type Segmentation struct {
	Data struct {
		Series []string                  `json:"series"`
		Values map[string]map[string]int `json:"values"`
	} `json:"data"`
	LegendSize int `json:"legend_size"`
}

type Client struct {
	http     *httpapi.Client
	trackURL string
	queryURL string
	env      *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{
		http:     env.HTTP,
		trackURL: env.BaseURL(Name, DefaultTrackURL),
		queryURL: env.BaseURL(QueryEndpoint, DefaultQueryURL),
		env:      env,
	}, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "track":
		var req TrackRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		out, err := c.Track(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out), nil
	case "segmentation":
		var req SegmentationRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		out, err := c.Segmentation(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

// ParseProps turns "k:v,k2:v2" pairs into event properties. Numeric and
// boolean values keep their type.
func ParseProps(pairs []string) (map[string]any, error) {
	props := map[string]any{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, ":")
		if !ok || k == "" {
			return nil, apierr.Usage("props entries must look like key:value, got "+pair, "props=plan:pro,seats:3")
		}
		switch {
		case v == "true" || v == "false":
			props[k] = v == "true"
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				props[k] = n
			} else {
				props[k] = v
			}
		}
	}
	return props, nil
}

func (c *Client) Track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	props, err := ParseProps(req.Props)
	if err != nil {
		return nil, err
	}
	insertID := uuid.NewString()
	props["token"] = c.env.Creds.Get("MIXPANEL_PROJECT_TOKEN")
	props["distinct_id"] = req.DistinctID
	props["time"] = c.env.Now().Unix()
	props["$insert_id"] = insertID

	var out trackResponse
	err = c.http.DoJSON(ctx, httpapi.Request{
		URL:   c.trackURL + "/track",
		Query: url.Values{"verbose": {"1"}},
		JSON:  []trackEvent{{Event: req.Event, Properties: props}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != 1 {
		return nil, apierr.Upstream(Name, out.Error)
	}
	return &TrackResult{Event: req.Event, InsertID: insertID}, nil
}

func (c *Client) Segmentation(ctx context.Context, req SegmentationRequest) (*Segmentation, error) {
	if req.Days < 1 {
		return nil, apierr.Usage("days must be positive", "days=7")
	}
	to := c.env.Now().UTC()
	from := to.Add(-time.Duration(req.Days-1) * 24 * time.Hour)

	var out Segmentation
	err := c.http.DoJSON(ctx, httpapi.Request{
		URL: c.queryURL + "/query/segmentation",
		Query: url.Values{
			"project_id": {c.env.Creds.Get("MIXPANEL_PROJECT_ID")},
			"event":      {req.Event},
			"from_date":  {from.Format("2006-01-02")},
			"to_date":    {to.Format("2006-01-02")},
			"unit":       {req.Unit},
		},
		BasicUser: c.env.Creds.Get("MIXPANEL_SERVICE_ACCOUNT"),
		BasicPass: c.env.Creds.Get("MIXPANEL_SERVICE_SECRET"),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
