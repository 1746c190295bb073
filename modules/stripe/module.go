// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package stripe reads balances, charges, customers and subscriptions from
// the Stripe API and computes simple revenue totals.
package stripe

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "stripe"
	DefaultBaseURL = "https://api.stripe.com/v1"
	// maxRevenuePages bounds how far revenue pages back through charges.
	maxRevenuePages = 50
)

// Module implements the platform.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:    Name,
		Summary: "Payments, customers and revenue from Stripe",
		Credentials: []platform.Credential{
			{Env: "STRIPE_SECRET_KEY", Help: "sk_live_... or a restricted read key"},
		},
		Setup: []string{
			"Open https://dashboard.stripe.com/apikeys",
			"Create a restricted key with read access to balance, charges, customers and subscriptions",
		},
		Actions: []platform.ActionInfo{
			{Name: "balance", Summary: "Available and pending balance"},
			{Name: "charges", Summary: "Recent charges", Usage: "[limit=10]"},
			{Name: "customers", Summary: "Recent customers", Usage: "[limit=10] [email=...]"},
			{Name: "subscriptions", Summary: "Subscriptions by status", Usage: "[status=active] [limit=10]"},
			{Name: "revenue", Summary: "Succeeded, non-refunded charge totals per currency", Usage: "[days=30]"},
		},
		Open: Open,
	}
}

// Money is an amount in the currency's minor unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	Available []Money `json:"available"`
	Pending   []Money `json:"pending"`
}

type Charge struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Paid           bool   `json:"paid"`
	Refunded       bool   `json:"refunded"`
	Created        int64  `json:"created"`
	Description    string `json:"description"`
	Customer       string `json:"customer"`
	ReceiptEmail   string `json:"receipt_email"`
}

type Customer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Created int64  `json:"created"`
}

type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	CancelAtEnd      bool   `json:"cancel_at_period_end"`
}

// List is Stripe's pagination envelope.
type List[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// CurrencyTotal is one line of the revenue report.
type CurrencyTotal struct {
	Currency string  `json:"currency"`
	Minor    int64   `json:"amount_minor"`
	Major    float64 `json:"amount"`
	Charges  int     `json:"charges"`
}

// zeroDecimal and threeDecimal list the currencies Stripe does not express in
// cents.
var (
	zeroDecimal = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimal = map[string]bool{"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true}
)

// minorPerMajor is how many minor units make one unit of currency.
func minorPerMajor(currency string) float64 {
	currency = strings.ToLower(currency)
	switch {
	case zeroDecimal[currency]:
		return 1
	case threeDecimal[currency]:
		return 1000
	}
	return 100
}

type Revenue struct {
	Since  time.Time       `json:"since"`
	Totals []CurrencyTotal `json:"totals"`
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	key     string
	now     func() time.Time
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{
		http:    env.HTTP,
		baseURL: env.BaseURL(Name, DefaultBaseURL),
		key:     env.Creds.Get("STRIPE_SECRET_KEY"),
		now:     env.Now,
	}, nil
}

type listRequest struct {
	Limit  int    `param:"limit" default:"10"`
	Email  string `param:"email"`
	Status string `param:"status" default:"active"`
	Days   int    `param:"days" default:"30"`
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	var req listRequest
	if err := params.Decode(p, &req); err != nil {
		return nil, err
	}
	if req.Limit < 1 || req.Limit > 100 {
		return nil, apierr.Usage("limit must be between 1 and 100", "limit=10")
	}

	var (
		data any
		err  error
	)
	switch action {
	case "balance":
		var b Balance
		err = c.get(ctx, "/balance", nil, &b)
		data = b
	case "charges":
		var l List[Charge]
		err = c.get(ctx, "/charges", url.Values{"limit": {strconv.Itoa(req.Limit)}}, &l)
		data = l.Data
	case "customers":
		q := url.Values{"limit": {strconv.Itoa(req.Limit)}}
		if req.Email != "" {
			q.Set("email", req.Email)
		}
		var l List[Customer]
		err = c.get(ctx, "/customers", q, &l)
		data = l.Data
	case "subscriptions":
		var l List[Subscription]
		err = c.get(ctx, "/subscriptions", url.Values{"limit": {strconv.Itoa(req.Limit)}, "status": {req.Status}}, &l)
		data = l.Data
	case "revenue":
		data, err = c.Revenue(ctx, req.Days)
	default:
		return nil, apierr.Usage("unknown action "+action, "")
	}
	if err != nil {
		return nil, err
	}
	return platform.NewResult(Name, action, data), nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.http.DoJSON(ctx, httpapi.Request{
		URL:         c.baseURL + path,
		Query:       q,
		BearerToken: c.key,
	}, out)
}

// Revenue sums succeeded, non-refunded charges created in the last days,
// paging through results with starting_after.
func (c *Client) Revenue(ctx context.Context, days int) (*Revenue, error) {
	if days < 1 {
		return nil, apierr.Usage("days must be positive", "days=30")
	}
	since := c.now().Add(-time.Duration(days) * 24 * time.Hour)
	totals := map[string]*CurrencyTotal{}

	after := ""
	for page := 0; page < maxRevenuePages; page++ {
		q := url.Values{
			"limit":        {"100"},
			"created[gte]": {strconv.FormatInt(since.Unix(), 10)},
		}
		if after != "" {
			q.Set("starting_after", after)
		}
		var l List[Charge]
		if err := c.get(ctx, "/charges", q, &l); err != nil {
			return nil, err
		}
		for _, ch := range l.Data {
			if ch.Status != "succeeded" || ch.Refunded {
				continue
			}
			t := totals[ch.Currency]
			if t == nil {
				t = &CurrencyTotal{Currency: ch.Currency}
				totals[ch.Currency] = t
			}
			t.Minor += ch.Amount - ch.AmountRefunded
			t.Charges++
		}
		if !l.HasMore || len(l.Data) == 0 {
			break
		}
		after = l.Data[len(l.Data)-1].ID
	}

	out := &Revenue{Since: since.UTC()}
	for _, t := range totals {
		t.Major = float64(t.Minor) / minorPerMajor(t.Currency)
		out.Totals = append(out.Totals, *t)
	}
	sort.Slice(out.Totals, func(i, j int) bool { return out.Totals[i].Currency < out.Totals[j].Currency })
	return out, nil
}
