// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package elevenlabs lists voices and synthesises speech to mp3.
package elevenlabs

import (
	"context"
	"net/http"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
	"ccos/internal/params"
	"ccos/internal/platform"
)

const (
	Name           = "elevenlabs"
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	// DefaultVoice is "Rachel", available on every account.
	DefaultVoice = "21m00Tcm4TlvDq8ikWAM"
)

type Module struct{}

func (m *Module) Register(r *platform.Registry) {
	r.Register(Definition())
}

func Definition() platform.Definition {
	return platform.Definition{
		Name:        Name,
		Summary:     "Text to speech with ElevenLabs",
		Credentials: []platform.Credential{{Env: "ELEVENLABS_API_KEY", Help: "Profile > API key"}},
		Setup:       []string{"Copy the API key from https://elevenlabs.io/app/settings/api-keys"},
		Actions: []platform.ActionInfo{
			{Name: "voices", Summary: "List available voices"},
			{Name: "tts", Summary: "Synthesise speech to an mp3 artifact", Usage: "text=... [voice_id=" + DefaultVoice + "] [model=eleven_multilingual_v2]", Required: []string{"text"}},
		},
		Open: Open,
	}
}

type TTSRequest struct {
	Text      string  `param:"text,required"`
	VoiceID   string  `param:"voice_id" default:"21m00Tcm4TlvDq8ikWAM"`
	Model     string  `param:"model" default:"eleven_multilingual_v2"`
	Stability float64 `param:"stability" default:"0.5"`
}

type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ttsBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type Client struct {
	http    *httpapi.Client
	baseURL string
	key     string
	env     *platform.Env
}

func Open(env *platform.Env) (platform.Platform, error) {
	return &Client{http: env.HTTP, baseURL: env.BaseURL(Name, DefaultBaseURL), key: env.Creds.Get("ELEVENLABS_API_KEY"), env: env}, nil
}

func (c *Client) header(accept string) http.Header {
	h := http.Header{}
	h.Set("xi-api-key", c.key)
	h.Set("Accept", accept)
	return h
}

func (c *Client) Execute(ctx context.Context, action string, p params.Params) (*platform.Result, error) {
	switch action {
	case "voices":
		var out struct {
			Voices []Voice `json:"voices"`
		}
		if err := c.http.DoJSON(ctx, httpapi.Request{URL: c.baseURL + "/voices", Header: c.header("application/json")}, &out); err != nil {
			return nil, err
		}
		return platform.NewResult(Name, action, out.Voices), nil

	case "tts":
		var req TTSRequest
		if err := params.Decode(p, &req); err != nil {
			return nil, err
		}
		resp, err := c.http.Do(ctx, httpapi.Request{
			URL:    c.baseURL + "/text-to-speech/" + req.VoiceID,
			Header: c.header("audio/mpeg"),
			JSON: ttsBody{
				Text:          req.Text,
				ModelID:       req.Model,
				VoiceSettings: voiceSettings{Stability: req.Stability, SimilarityBoost: 0.75},
			},
		})
		if err != nil {
			return nil, err
		}
		art, err := c.env.SaveArtifact(c.env.ArtifactPath(Name, req.Text, "mp3"), resp.Body, "audio/mpeg")
		if err != nil {
			return nil, err
		}
		res := platform.NewResult(Name, action, map[string]string{"voice_id": req.VoiceID, "model": req.Model})
		res.Artifacts = []platform.Artifact{art}
		return res, nil
	}
	return nil, apierr.Usage("unknown action "+action, "")
}
