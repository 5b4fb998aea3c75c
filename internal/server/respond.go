package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mltutor/mltutor/internal/chat"
	"github.com/mltutor/mltutor/internal/history"
	"github.com/mltutor/mltutor/internal/index"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/material"
	"github.com/mltutor/mltutor/internal/quiz"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

type errorPayload struct {
	Error string `json:"error"`
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorPayload{Error: msg})
}

// respondError maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, ingest.ErrEmptyDocument),
		errors.Is(err, index.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, material.ErrNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quiz.ErrMaterialNotIndexed):
		status = http.StatusConflict
	case errors.Is(err, quiz.ErrNoQuestionsGenerated):
		status = http.StatusBadGateway
	case errors.Is(err, chat.ErrUpstreamUnavailable),
		errors.Is(err, history.ErrDiagnosticUnavailable):
		status = http.StatusServiceUnavailable
	default:
		s.log.Error("request failed", slog.Any("error", err))
		respondJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorPayload{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
