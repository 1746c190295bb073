// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package googleauth turns a Google OAuth client and refresh token into
// short-lived access tokens. Gmail, GA4 and Google Ads share it.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/retry"
)

const (
	// OOBRedirect is the loopback redirect registered for desktop clients.
	OOBRedirect = "http://localhost"
	// Endpoint is the config endpoints key that overrides the token URL.
	Endpoint = "google-oauth"
	// authState is echoed back by Google; the code is pasted by hand so it
	// is never checked.
	authState = "ccos"
)

// TokenURL is Google's token endpoint.
var TokenURL = google.Endpoint.TokenURL

// expiryMargin refreshes tokens slightly before Google considers them expired.
const expiryMargin = 5 * time.Minute

// NewConfig builds an OAuth client config against Google's endpoints. A
// non-empty tokenURL replaces the token endpoint.
func NewConfig(clientID, clientSecret, tokenURL string, scopes ...string) *oauth2.Config {
	endpoint := google.Endpoint
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  OOBRedirect,
		Scopes:       scopes,
	}
}

// LoadClientFile reads a credentials.json downloaded from the Cloud console.
// Errors from reading the file keep os.ErrNotExist visible.
func LoadClientFile(path string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, apierr.Config("invalid OAuth client file "+path, err)
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = OOBRedirect
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint.AuthURL = google.Endpoint.AuthURL
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint.TokenURL = google.Endpoint.TokenURL
	}
	cfg.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	return cfg, nil
}

// Source hands out access tokens, refreshing them as needed. It is safe for
// concurrent use.
type Source struct {
	Config *oauth2.Config
	// TokenFile, when set, is where refreshed tokens are persisted.
	TokenFile string
	HTTP      *httpapi.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// NewSource builds a source from a client config and an initial refresh token.
func NewSource(client *httpapi.Client, cfg *oauth2.Config, refreshToken string) *Source {
	return &Source{
		Config: cfg,
		HTTP:   client,
		token:  &oauth2.Token{RefreshToken: refreshToken},
	}
}

// SetToken replaces the cached token.
func (s *Source) SetToken(t *oauth2.Token) {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
}

// oauthContext makes the oauth2 package send through the shared client.
func (s *Source) oauthContext(ctx context.Context) context.Context {
	if s.HTTP == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.HTTP.HTTP)
}

// AccessToken returns a valid access token, refreshing if necessary.
func (s *Source) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil || (s.token.RefreshToken == "" && !s.token.Valid()) {
		return "", apierr.Config("no Google refresh token available; run the auth flow first", nil)
	}

	// The refresher starts from a token without an access token so that it
	// always asks Google; the reuse wrapper decides whether it is needed.
	refresher := s.Config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: s.token.RefreshToken})
	src := oauth2.ReuseTokenSourceWithExpiry(s.token, refresher, expiryMargin)

	var fresh *oauth2.Token
	err := s.retry(ctx, func() error {
		var err error
		fresh, err = src.Token()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to refresh Google access token: %w", err)
	}

	if fresh.AccessToken != s.token.AccessToken {
		s.token = fresh
		if s.TokenFile != "" {
			if err := SaveToken(s.TokenFile, fresh); err != nil {
				return "", err
			}
		}
	}
	return fresh.AccessToken, nil
}

// Exchange trades an authorization code for tokens and caches the result.
func (s *Source) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	var tok *oauth2.Token
	err := s.retry(ctx, func() error {
		var err error
		tok, err = s.Config.Exchange(s.oauthContext(ctx), strings.TrimSpace(code))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	s.SetToken(tok)
	if s.TokenFile != "" {
		if err := SaveToken(s.TokenFile, tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// AuthCodeURL builds the consent URL for an offline-access authorization.
func (s *Source) AuthCodeURL() string {
	return s.Config.AuthCodeURL(authState, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// retry runs op under the shared client's policy with oauth2 failures
// recoded so transient ones are retried.
func (s *Source) retry(ctx context.Context, op func() error) error {
	policy := retry.Policy{Attempts: 1}
	if s.HTTP != nil {
		policy = s.HTTP.Policy
	}
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		return classify(ctx, op())
	})
}

func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return apierr.HTTPStatus(re.Response.StatusCode, re.Body)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return apierr.Transport(err)
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, apierr.Decode("token file "+path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return apierr.IO("could not create token directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return apierr.IO("could not save token", path, err)
	}
	return nil
}
