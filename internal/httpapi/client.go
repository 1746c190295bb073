// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package httpapi is the shared HTTP client behind every platform module. It
// encodes JSON and form bodies, applies the retry policy to each request,
// turns non-2xx responses into coded errors and traces every attempt.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ccos/internal/apierr"
	"ccos/internal/logger"
	"ccos/internal/retry"
	"ccos/internal/tracing"
)

const (
	userAgent  = "ccos/1.0"
	maxLogBody = 2048
)

// maxBodySize bounds responses buffered by Do. Artifacts go through Download
// or Stream instead.
var maxBodySize = 512 << 20

// Client sends requests under a retry policy.
type Client struct {
	HTTP   *http.Client
	Policy retry.Policy
	Logger *slog.Logger
}

// New builds a client with a pooled transport and the given timeout.
func New(timeout time.Duration, policy retry.Policy, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	return &Client{
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Policy: policy,
		Logger: log,
	}
}

// Request describes one API call. At most one of JSON, Form and Body is used.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header

	JSON        any
	Form        url.Values
	Body        []byte
	ContentType string

	BearerToken string
	BasicUser   string
	BasicPass   string
}

// Response is a fully read 2xx response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return apierr.Decode("response body", err)
	}
	return nil
}

func (req Request) method() string {
	if req.Method == "" {
		if req.JSON != nil || req.Form != nil || req.Body != nil {
			return http.MethodPost
		}
		return http.MethodGet
	}
	return req.Method
}

func (req Request) target() (string, error) {
	if len(req.Query) == 0 {
		return req.URL, nil
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", req.URL, err)
	}
	q := u.Query()
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (req Request) payload() ([]byte, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, "application/json", nil
	case req.Form != nil:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		return req.Body, req.ContentType, nil
	}
	return nil, "", nil
}

func (req Request) build(ctx context.Context, target string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}
	if req.BasicUser != "" || req.BasicPass != "" {
		httpReq.SetBasicAuth(req.BasicUser, req.BasicPass)
	}
	return httpReq, nil
}

// Do sends req, retrying transient failures under the client's policy.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := req.target()
	if err != nil {
		return nil, apierr.Usage(err.Error(), "")
	}
	body, contentType, err := req.payload()
	if err != nil {
		return nil, err
	}

	var resp *Response
	policy := c.Policy
	policy.Notify = c.notify(req.method(), target)
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		httpReq, err := req.build(ctx, target, body, contentType)
		if err != nil {
			return retry.Stop(err)
		}
		resp, err = c.attempt(ctx, httpReq)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON sends req and decodes the response body into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) attempt(ctx context.Context, httpReq *http.Request) (*Response, error) {
	ctx, span := tracing.Start(ctx, "http "+httpReq.Method+" "+httpReq.URL.Host)
	var err error
	defer func() { tracing.End(span, err) }()

	httpResp, err := c.HTTP.Do(httpReq.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
			return nil, err
		}
		err = apierr.Transport(err)
		return nil, err
	}
	defer httpResp.Body.Close()
	span.SetAttributes(attribute.Int(tracing.AttrHTTPCode, httpResp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, int64(maxBodySize)+1))
	if err != nil {
		err = apierr.Transport(err)
		return nil, err
	}
	if len(data) > maxBodySize {
		err = apierr.Decode("response body", fmt.Errorf("larger than %d bytes", maxBodySize))
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logStatus(httpReq, httpResp.StatusCode, data)
		err = apierr.HTTPStatus(httpResp.StatusCode, data)
		return nil, err
	}

	c.Logger.Debug("HTTP request succeeded", "method", httpReq.Method, "url", redactURL(httpReq.URL), "status", httpResp.StatusCode)
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *Client) logStatus(httpReq *http.Request, status int, body []byte) {
	text := string(body)
	if len(text) > maxLogBody {
		text = text[:maxLogBody]
	}
	c.Logger.Warn("HTTP request failed", "method", httpReq.Method, "url", redactURL(httpReq.URL), "status", status, "body", text)
}

func (c *Client) notify(method, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, wait time.Duration) {
		c.Logger.Info("Retrying request", "method", method, "url", redactURLString(target), "attempt", attempt, "wait", wait.String(), "error", err.Error())
	}
}

var secretQueryKeys = []string{"key", "token", "apikey", "api_key", "access_token"}

// redactURL drops credentials carried in query strings before logging.
func redactURL(u *url.URL) string {
	clone := *u
	q := clone.Query()
	changed := false
	for k := range q {
		for _, s := range secretQueryKeys {
			if strings.EqualFold(k, s) {
				q.Set(k, "***")
				changed = true
			}
		}
	}
	if changed {
		clone.RawQuery = q.Encode()
	}
	return clone.String()
}

func redactURLString(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	return redactURL(u)
}
