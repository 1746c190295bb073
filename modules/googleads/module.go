// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package googleads queries campaigns and their performance with GAQL.
package googleads

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ccos/internal/apierr"
	"ccos/internal/googleauth"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "googleads"
	DefaultBaseURL = "https://googleads.googleapis.com/v18"
	maxPages       = 20
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Google Ads campaigns and performance",
		Credentials: []platform.Credential{
			{Env: "GOOGLE_ADS_DEVELOPER_TOKEN", Help: "Ads UI > Tools > API Center"},
			{Env: "GOOGLE_ADS_CUSTOMER_ID", Help: "10 digits, dashes allowed"},
			{Env: "GOOGLE_ADS_LOGIN_CUSTOMER_ID", Optional: true, Help: "manager account id"},
			{Env: "GOOGLE_CLIENT_ID"},
			{Env: "GOOGLE_CLIENT_SECRET"},
			{Env: "GOOGLE_REFRESH_TOKEN", Help: "OAuth refresh token with the adwords scope"},
		},
		Setup: []string{
			"Apply for a developer token in the Google Ads API Center",
			"Create an OAuth desktop client and authorise it with the https://www.googleapis.com/auth/adwords scope",
			"Set GOOGLE_ADS_LOGIN_CUSTOMER_ID when accessing a client account through a manager",
		},
		Actions: []platform.ActionInfo{
			{Name: "campaigns", Summary: "List campaigns with status and budget"},
			{Name: "performance", Summary: "Impressions, clicks, cost and conversions per campaign", Usage: "[days=30]"},
		},
		Open: Open,
	}
}

type PerformanceRequest struct {
	Days int `param:"days" default:"30"`
}

const campaignsQuery = `SELECT campaign.id, campaign.name, campaign.status, campaign.advertising_channel_type, campaign_budget.amount_micros
FROM campaign
WHERE campaign.status != 'REMOVED'
ORDER BY campaign.name`

// GAQL only accepts a fixed set of named ranges, so custom spans use BETWEEN.
func performanceQuery(from, to string) string {
	return fmt.Sprintf(`SELECT campaign.id, campaign.name, metrics.impressions, metrics.clicks, metrics.cost_micros, metrics.conversions
FROM campaign
WHERE segments.date BETWEEN '%s' AND '%s' AND campaign.status != 'REMOVED'
ORDER BY metrics.cost_micros DESC`, from, to)
}

type row struct {
	Campaign struct {
		ID                     string `json:"id"`
		Name                   string `json:"name"`
		Status                 string `json:"status"`
		AdvertisingChannelType string `json:"advertisingChannelType"`
	} `json:"campaign"`
	CampaignBudget struct {
		AmountMicros string `json:"amountMicros"`
	} `json:"campaignBudget"`
	Metrics struct {
		Impressions string  `json:"impressions"`
		Clicks      string  `json:"clicks"`
		CostMicros  string  `json:"costMicros"`
		Conversions float64 `json:"conversions"`
	} `json:"metrics"`
}

type searchResponse struct {
	Results       []row  `json:"results"`
	NextPageToken string `json:"nextPageToken"`
}

type Campaign struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Status  string  `json:"status"`
	Channel string  `json:"channel"`
	Budget  float64 `json:"daily_budget"`
}

type Performance struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Cost        float64 `json:"cost"`
	Conversions float64 `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
}

// Micros converts a micros amount as returned by the API into currency units.
func Micros(s string) float64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return float64(n) / 1e6
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

type Client struct {
	http       *httpapi.Client
	baseURL    string
	devToken   string
	customerID string
	loginID    string
	auth       *googleauth.Source
	env        *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	cfg := googleauth.NewConfig(env.Creds.Get("GOOGLE_CLIENT_ID"), env.Creds.Get("GOOGLE_CLIENT_SECRET"),
		env.BaseURL(googleauth.Endpoint, googleauth.TokenURL))
	auth := googleauth.NewSource(env.HTTP, cfg, env.Creds.Get("GOOGLE_REFRESH_TOKEN"))
	return &Client{
		http:       env.HTTP,
		baseURL:    env.BaseURL(Name, DefaultBaseURL),
		devToken:   env.Creds.Get("GOOGLE_ADS_DEVELOPER_TOKEN"),
		customerID: strings.ReplaceAll(env.Creds.Get("GOOGLE_ADS_CUSTOMER_ID"), "-", ""),
		loginID:    strings.ReplaceAll(env.Creds.Get("GOOGLE_ADS_LOGIN_CUSTOMER_ID"), "-", ""),
		auth:       auth,
		env:        env,
	}, nil
}

// search runs a GAQL query and follows page tokens.
func (c *Client) search(ctx context.Context, query string) ([]row, error) {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{"developer-token": {c.devToken}}
	if c.loginID != "" {
		header.Set("login-customer-id", c.loginID)
	}

	var rows []row
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		body := map[string]string{"query": query}
		if pageToken != "" {
			body["pageToken"] = pageToken
		}
		var out searchResponse
		err := c.http.DoJSON(ctx, httpapi.Request{
			URL:         c.baseURL + "/customers/" + c.customerID + "/googleAds:search",
			JSON:        body,
			Header:      header,
			BearerToken: token,
		}, &out)
		if err != nil {
			return nil, err
		}
		rows = append(rows, out.Results...)
		if out.NextPageToken == "" {
			break
		}
		pageToken = out.NextPageToken
	}
	return rows, nil
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "campaigns":
		rows, err := c.search(ctx, campaignsQuery)
		if err != nil {
			return nil, err
		}
		out := make([]Campaign, 0, len(rows))
		for _, r := range rows {
			out = append(out, Campaign{
				ID:      r.Campaign.ID,
				Name:    r.Campaign.Name,
				Status:  r.Campaign.Status,
				Channel: r.Campaign.AdvertisingChannelType,
				Budget:  Micros(r.CampaignBudget.AmountMicros),
			})
		}
		return platform.NewResult(Name, action, out), nil

	case "performance":
		var req PerformanceRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		if req.Days < 1 {
			return nil, apierr.Usage("days must be at least 1", "")
		}
		now := c.env.Now().UTC()
		from := now.AddDate(0, 0, -req.Days).Format("2006-01-02")
		rows, err := c.search(ctx, performanceQuery(from, now.Format("2006-01-02")))
		if err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, aggregate(rows)), nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}

// aggregate sums rows per campaign, since date-segmented queries return one
// row per day.
func aggregate(rows []row) []Performance {
	var order []string
	byID := map[string]*Performance{}
	for _, r := range rows {
		perf, ok := byID[r.Campaign.ID]
		if !ok {
			perf = &Performance{ID: r.Campaign.ID, Name: r.Campaign.Name}
			byID[r.Campaign.ID] = perf
			order = append(order, r.Campaign.ID)
		}
		perf.Impressions += parseInt(r.Metrics.Impressions)
		perf.Clicks += parseInt(r.Metrics.Clicks)
		perf.Cost += Micros(r.Metrics.CostMicros)
		perf.Conversions += r.Metrics.Conversions
	}
	out := make([]Performance, 0, len(order))
	for _, id := range order {
		perf := byID[id]
		if perf.Impressions > 0 {
			perf.CTR = float64(perf.Clicks) / float64(perf.Impressions)
		}
		if perf.Clicks > 0 {
			perf.CPC = perf.Cost / float64(perf.Clicks)
		}
		out = append(out, *perf)
	}
	return out
}
