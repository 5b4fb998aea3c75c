// Package server exposes the tutoring backend over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mltutor/mltutor/internal/chat"
	"github.com/mltutor/mltutor/internal/history"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/material"
	"github.com/mltutor/mltutor/internal/quiz"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Materials     *material.Registry
	Ingestor      *ingest.Ingestor
	Extractor     PageExtractor
	Orchestrator  *chat.Orchestrator
	Generator     *quiz.Generator
	Reviewer      *quiz.Reviewer
	Evaluator     *quiz.Evaluator
	History       history.Store
	Analytics     *history.Analytics
	Diagnostician *history.Diagnostician
	Sessions      *chat.SessionStore
	ChatDefaults  chat.Settings
	Readiness     []HealthChecker
	Log           *slog.Logger
}

// Server is the HTTP handler set.
type Server struct {
	deps Deps
	log  *slog.Logger
}

func New(deps Deps) *Server {
	if deps.Extractor == nil {
		deps.Extractor = PlainTextExtractor{}
	}
	if deps.Sessions == nil {
		deps.Sessions = chat.NewSessionStore()
	}
	return &Server{deps: deps, log: deps.Log}
}

// Routes builds the API router.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/materials", s.handleMaterials)
	mux.HandleFunc("GET /api/materials/{id}/chapters", s.handleChapters)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)

	mux.HandleFunc("POST /api/quiz/generate", s.handleQuizGenerate)
	mux.HandleFunc("POST /api/quiz/submit", s.handleQuizSubmit)
	mux.HandleFunc("GET /api/quiz/wrong", s.handleQuizWrong)

	mux.HandleFunc("GET /api/report/overview", s.handleReportOverview)
	mux.HandleFunc("GET /api/report/timeline", s.handleReportTimeline)
	mux.HandleFunc("GET /api/report/diagnostic", s.handleReportDiagnostic)
	mux.HandleFunc("GET /api/report/export", s.handleReportExport)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.deps.Readiness {
		if err := c.HealthCheck(r.Context()); err != nil {
			s.log.Warn("readiness check failed", slog.Any("error", err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
