// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ccos/internal/apierr"
	"ccos/internal/jobs"
	"ccos/internal/params"
	"ccos/internal/runner"
)

const maxRequestBody = 1 << 20

// paramsFromBody accepts either a flat JSON object, whose scalar values are
// stringified, or {"params": "a=b&c=d"}.
func paramsFromBody(body []byte) (params.Params, error) {
	p := params.Params{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return p, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierr.Usage("request body must be a JSON object: "+err.Error(), "")
	}
	if s, ok := raw["params"].(string); ok && len(raw) == 1 {
		return params.Parse([]string{s})
	}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			p[k] = v
		case float64, bool:
			p[k] = fmt.Sprint(v)
		case nil:
		default:
			return nil, apierr.Usage(fmt.Sprintf("parameter %q must be a string, number or boolean", k), "")
		}
	}
	return p, nil
}

func invocationFrom(r *http.Request, p params.Params) runner.Invocation {
	vars := mux.Vars(r)
	return runner.Invocation{
		Platform: vars["platform"],
		Action:   vars["action"],
		Params:   p,
		Publish:  r.URL.Query().Get("publish"),
	}
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, apierr.Usage("error reading request body: "+err.Error(), ""))
		return
	}
	defer r.Body.Close()

	p, err := paramsFromBody(body)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Runner.Run(r.Context(), invocationFrom(r, p))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

// streamHandler runs an invocation whose params come from the query string
// and reports job progress as Server-Sent Events.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	p := params.Params{}
	for k := range r.URL.Query() {
		if k != "publish" {
			p[k] = r.URL.Query().Get(k)
		}
	}

	events, done := s.Runner.Stream(r.Context(), invocationFrom(r, p))
	for ev := range events {
		writeEvent(w, eventName(ev.Kind), map[string]any{
			"id":       ev.ID,
			"attempt":  ev.Attempt,
			"state":    ev.Status.State.String(),
			"detail":   ev.Status.Detail,
			"progress": ev.Status.Progress,
		})
		flusher.Flush()
	}

	out := <-done
	if out.Err != nil {
		writeEvent(w, "error", errorResponse(out.Err))
	} else {
		writeEvent(w, "result", out.Result)
	}
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", out.ID)
	flusher.Flush()
}

func eventName(k jobs.EventKind) string {
	switch k {
	case jobs.EventSubmitted:
		return "submitted"
	case jobs.EventFetched:
		return "fetched"
	default:
		return "polled"
	}
}

// writeEvent writes one SSE event with a single-line JSON payload.
func writeEvent(w io.Writer, name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}
