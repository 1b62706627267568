// Package server exposes the page context workflow over HTTP and MCP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thywilljoshua/fincontext/internal/ai"
	"github.com/thywilljoshua/fincontext/internal/layout"
	"github.com/thywilljoshua/fincontext/internal/pdfpage"
	"github.com/thywilljoshua/fincontext/internal/workflow"
)

// Runner computes page context; *workflow.Workflow satisfies it.
type Runner interface {
	Run(ctx context.Context, req workflow.Request) (*layout.ParsedPage, error)
}

const maxBody = 1 << 20

// NewHandler returns the HTTP API:
//
//	POST /v1/page-context  workflow.Request -> layout.ParsedPage
//	GET  /healthz
func NewHandler(run Runner, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{run: run, log: logger}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/v1/page-context", h.pageContext)
	return r
}

type handler struct {
	run Runner
	log *slog.Logger
}

func (h *handler) pageContext(w http.ResponseWriter, r *http.Request) {
	var req workflow.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	start := time.Now()
	page, err := h.run.Run(r.Context(), req)
	if err != nil {
		code := StatusFor(err)
		h.log.Warn("server.page_context.failed", "request_id", middleware.GetReqID(r.Context()),
			"source", req.Source, "page", req.PageNumber, "status", code, "err", err)
		writeError(w, code, err)
		return
	}
	h.log.Info("server.page_context.ok", "request_id", middleware.GetReqID(r.Context()),
		"source", req.Source, "page", req.PageNumber, "elapsed_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, page)
}

// StatusFor maps workflow errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidRequest), errors.Is(err, layout.ErrInvalidBox):
		return http.StatusBadRequest
	case errors.Is(err, pdfpage.ErrRetrieval):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrSummarization), errors.Is(err, ai.ErrEvaluation):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
