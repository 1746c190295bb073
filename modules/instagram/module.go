// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package instagram reads and publishes to an Instagram business account
// through the Graph API.
package instagram

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "instagram"
	DefaultBaseURL = "https://graph.facebook.com/v21.0"
)

const (
	profileFields = "id,username,name,biography,followers_count,follows_count,media_count"
	mediaFields   = "id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Instagram business account insights and publishing",
		Credentials: []platform.Credential{
			{Env: "INSTAGRAM_ACCESS_TOKEN", Help: "long-lived token from the Graph API explorer"},
			{Env: "INSTAGRAM_BUSINESS_ACCOUNT_ID"},
		},
		Setup: []string{
			"Connect the Instagram professional account to a Facebook page",
			"Create an app at https://developers.facebook.com with instagram_basic, instagram_content_publish and instagram_manage_insights",
			"Exchange a user token for a long-lived token and look up the business account id",
		},
		Actions: []platform.ActionInfo{
			{Name: "profile", Summary: "Account profile and counts"},
			{Name: "media", Summary: "Recent posts with engagement", Usage: "[limit=10]"},
			{Name: "insights", Summary: "Account metrics", Usage: "[metric=impressions,reach] [period=day]"},
			{
				Name:    "publish",
				Summary: "Publish an image or reel from a public URL",
				Usage:   "(image_url=... | video_url=...) [caption=...]",
				Async:   true,
			},
		},
		Open: Open,
	}
}

type MediaRequest struct {
	Limit int `param:"limit" default:"10"`
}

type InsightsRequest struct {
	Metric string `param:"metric" default:"impressions,reach"`
	Period string `param:"period" default:"day"`
}

type PublishRequest struct {
	ImageURL string `param:"image_url"`
	VideoURL string `param:"video_url"`
	Caption  string `param:"caption"`
}

type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	Biography      string `json:"biography"`
	FollowersCount int    `json:"followers_count"`
	FollowsCount   int    `json:"follows_count"`
	MediaCount     int    `json:"media_count"`
}

type Media struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
}

type Metric struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Title  string `json:"title"`
	Values []struct {
		Value   any    `json:"value"`
		EndTime string `json:"end_time"`
	} `json:"values"`
}

// Published is the result of a publish action.
type Published struct {
	ContainerID string `json:"container_id"`
	MediaID     string `json:"media_id"`
}

type Client struct {
	http      *httpapi.Client
	baseURL   string
	token     string
	accountID string
	env       *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{
		http:      env.HTTP,
		baseURL:   env.BaseURL(Name, DefaultBaseURL),
		token:     env.Creds.Get("INSTAGRAM_ACCESS_TOKEN"),
		accountID: env.Creds.Get("INSTAGRAM_BUSINESS_ACCOUNT_ID"),
		env:       env,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("access_token", c.token)
	return c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + path, Query: q}, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (string, error) {
	form.Set("access_token", c.token)
	var out struct {
		ID string `json:"id"`
	}
	if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + path, Form: form}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apierr.Upstream(Name, path+" returned no id")
	}
	return out.ID, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "profile":
		var out Profile
		if err := c.get(ctx, "/"+c.accountID, url.Values{"fields": {profileFields}}, &out); err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out), nil

	case "media":
		var req MediaRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		var out struct {
			Data []Media `json:"data"`
		}
		q := url.Values{"fields": {mediaFields}, "limit": {strconv.Itoa(req.Limit)}}
		if err := c.get(ctx, "/"+c.accountID+"/media", q, &out); err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out.Data), nil

	case "insights":
		var req InsightsRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		var out struct {
			Data []Metric `json:"data"`
		}
		q := url.Values{"metric": {req.Metric}, "period": {req.Period}}
		if err := c.get(ctx, "/"+c.accountID+"/insights", q, &out); err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out.Data), nil

	case "publish":
		var req PublishRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		out, err := c.Publish(ctx, req)
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

// Publish creates a media container, waits for Instagram to process it and
// then publishes it.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*Published, error) {
	if (req.ImageURL == "") == (req.VideoURL == "") {
		return nil, apierr.Usage("exactly one of image_url or video_url is required", "ccos instagram publish image_url=... caption=...")
	}
	container, _, err := jobs.Await(ctx, &containerJob{c: c, req: req}, c.env.Jobs)
	if err != nil {
		return nil, err
	}
	mediaID, err := c.post(ctx, "/"+c.accountID+"/media_publish", url.Values{"creation_id": {container}})
	if err != nil {
		return nil, err
	}
	return &Published{ContainerID: container, MediaID: mediaID}, nil
}

// containerJob waits for an uploaded media container to finish processing.
type containerJob struct {
	c   *Client
	req PublishRequest
}

func (j *containerJob) Submit(ctx context.Context) (string, error) {
	form := url.Values{}
	if j.req.Caption != "" {
		form.Set("caption", j.req.Caption)
	}
	if j.req.VideoURL != "" {
		form.Set("media_type", "REELS")
		form.Set("video_url", j.req.VideoURL)
	} else {
		form.Set("image_url", j.req.ImageURL)
	}
	return j.c.post(ctx, "/"+j.c.accountID+"/media", form)
}

func (j *containerJob) Poll(ctx context.Context, id string) (jobs.Status, error) {
	var out struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	if err := j.c.get(ctx, "/"+id, url.Values{"fields": {"status_code,status"}}, &out); err != nil {
		return jobs.Status{}, err
	}
	switch strings.ToUpper(out.StatusCode) {
	case "FINISHED", "PUBLISHED":
		return jobs.Status{State: jobs.Succeeded, Detail: out.StatusCode}, nil
	case "ERROR", "EXPIRED":
		return jobs.Status{State: jobs.Failed, Detail: out.Status}, nil
	}
	return jobs.Status{State: jobs.Pending, Detail: out.StatusCode}, nil
}
