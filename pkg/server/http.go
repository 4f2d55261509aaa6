// Package server exposes the explore engine over HTTP and owns the process
// lifecycle around it: startup, config reload and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/introlix/explorer/pkg/explorer"
	"github.com/introlix/explorer/pkg/observability"
	"github.com/introlix/explorer/pkg/store"
)

// defaultMaxResults is how many search hits each query considers when the
// request does not say.
const defaultMaxResults = 10

// maxQueryLen caps a single query string, in characters. Longer inputs are
// almost always pasted documents rather than search queries.
const maxQueryLen = 512

// Engine is the part of the explore engine the API serves.
type Engine interface {
	Run(ctx context.Context, queries []string, workspaceID string, mode explorer.Mode, maxResults int) ([]explorer.Result, error)
	PurgeWorkspace(ctx context.Context, workspaceID string) error
}

// API maps HTTP routes onto one engine.
type API struct {
	engine  Engine
	metrics observability.Metrics
}

// NewAPI builds the HTTP surface. metrics may be nil; the scrape endpoint
// then reports 503.
func NewAPI(engine Engine, metrics observability.Metrics) *API {
	return &API{
		engine:  engine,
		metrics: metrics,
	}
}

// Routes assembles the router with the full middleware stack.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware)

	r.Get("/health", a.handleHealth)
	r.Get("/metrics", a.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/explore", a.handleExplore)
		r.Delete("/workspaces/{workspace}", a.handlePurgeWorkspace)
	})

	return r
}

type exploreRequest struct {
	Queries     []string `json:"queries"`
	WorkspaceID string   `json:"workspace_id"`
	AnswerMode  string   `json:"answer_mode"`
	MaxResults  int      `json:"max_results"`
}

type exploreResponse struct {
	Results []explorer.Result `json:"results"`
	Count   int               `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req exploreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	for _, q := range req.Queries {
		if utf8.RuneCountInString(q) > maxQueryLen {
			writeError(w, http.StatusBadRequest, "query exceeds 512 characters")
			return
		}
	}

	mode := explorer.Mode(req.AnswerMode)
	if req.AnswerMode == "" {
		mode = explorer.ModeRetrieve
	}
	switch mode {
	case explorer.ModeRetrieve, explorer.ModeIngestOnly:
	default:
		writeError(w, http.StatusBadRequest, "unknown answer_mode")
		return
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	results, err := a.engine.Run(r.Context(), req.Queries, req.WorkspaceID, mode, maxResults)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNoWorkspace):
			writeError(w, http.StatusBadRequest, "workspace_id is required")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// The client is gone; there is nobody left to answer.
			slog.Warn("Explore request canceled", "workspace", req.WorkspaceID, "error", err)
		default:
			slog.Error("Explore run failed", "workspace", req.WorkspaceID, "error", err)
			writeError(w, http.StatusInternalServerError, "explore run failed")
		}
		return
	}

	if results == nil {
		results = []explorer.Result{}
	}
	writeJSON(w, http.StatusOK, exploreResponse{Results: results, Count: len(results)})
}

func (a *API) handlePurgeWorkspace(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	if workspace == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}

	if err := a.engine.PurgeWorkspace(r.Context(), workspace); err != nil {
		slog.Error("Workspace purge failed", "workspace", workspace, "error", err)
		writeError(w, http.StatusInternalServerError, "purge failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if a.metrics == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
		return
	}
	a.metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
