// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package api serves the platform registry, invocations and run history over
// HTTP for the web dashboard.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ccos/internal/apierr"
	"ccos/internal/history"
	"ccos/internal/logger"
	"ccos/internal/platform"
	"ccos/internal/runner"
	"ccos/internal/web"
)

// Server holds the runner that handlers invoke.
type Server struct {
	Runner *runner.Runner
}

// NewRouter registers every API route plus the embedded dashboard.
func NewRouter(r *runner.Runner) *mux.Router {
	s := &Server{Runner: r}
	router := mux.NewRouter()
	s.RegisterRoutes(router)

	// Static files last so they do not shadow /api.
	router.PathPrefix("/").Handler(http.FileServer(web.GetFileSystem()))
	return router
}

// RegisterRoutes adds the /api routes to router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/platforms", s.listPlatformsHandler).Methods("GET")
	router.HandleFunc("/api/platforms/{name}", s.getPlatformHandler).Methods("GET")
	router.HandleFunc("/api/run/{platform}/{action}", s.runHandler).Methods("POST")
	router.HandleFunc("/api/run/{platform}/{action}/stream", s.streamHandler).Methods("GET")
	router.HandleFunc("/api/history", s.historyHandler).Methods("GET")
}

// ActionInfo is the JSON form of a platform action.
type ActionInfo struct {
	Name     string   `json:"name"`
	Summary  string   `json:"summary"`
	Usage    string   `json:"usage"`
	Required []string `json:"required,omitempty"`
	Async    bool     `json:"async,omitempty"`
	Missing  []string `json:"missing_credentials,omitempty"`
}

// PlatformInfo is the JSON form of a platform with its readiness.
type PlatformInfo struct {
	Name        string       `json:"name"`
	Summary     string       `json:"summary"`
	Ready       bool         `json:"ready"`
	Credentials []string     `json:"credentials"`
	Missing     []string     `json:"missing_credentials,omitempty"`
	Setup       string       `json:"setup"`
	Actions     []ActionInfo `json:"actions"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Setup string `json:"setup,omitempty"`
	Usage string `json:"usage,omitempty"`
}

func (s *Server) describe(def *platform.Definition) PlatformInfo {
	creds := s.Runner.Env.Creds
	info := PlatformInfo{
		Name:    def.Name,
		Summary: def.Summary,
		Ready:   def.Ready(creds),
		Missing: def.Missing(creds, nil),
		Setup:   def.SetupGuide(),
	}
	for _, c := range def.Credentials {
		info.Credentials = append(info.Credentials, c.Label())
	}
	for i := range def.Actions {
		a := &def.Actions[i]
		info.Actions = append(info.Actions, ActionInfo{
			Name:     a.Name,
			Summary:  a.Summary,
			Usage:    def.UsageText(a),
			Required: a.Required,
			Async:    a.Async,
			Missing:  def.Missing(creds, a),
		})
	}
	return info
}

func (s *Server) listPlatformsHandler(w http.ResponseWriter, r *http.Request) {
	defs := s.Runner.Registry.Definitions()
	out := make([]PlatformInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, s.describe(def))
	}
	writeJSONResponse(w, http.StatusOK, out)
}

func (s *Server) getPlatformHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	def, ok := s.Runner.Registry.Lookup(name)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, ErrorResponse{Error: "unknown platform " + name, Code: apierr.CodeUsage})
		return
	}
	writeJSONResponse(w, http.StatusOK, s.describe(def))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Runner.History == nil {
		writeJSONResponse(w, http.StatusOK, []history.Run{})
		return
	}
	f := history.Filter{Platform: r.URL.Query().Get("platform"), Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, apierr.Usage("limit must be a positive integer", ""))
			return
		}
		f.Limit = n
	}
	runs, err := s.Runner.History.Recent(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSONResponse(w, http.StatusOK, runs)
}

// writeJSONResponse writes data as JSON with CORS headers.
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

func errorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error: err.Error(),
		Code:  apierr.Code(err),
		Setup: apierr.SetupGuide(err),
		Usage: apierr.Detail(err, "usage"),
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONResponse(w, apierr.HTTPStatusFor(err), errorResponse(err))
}
