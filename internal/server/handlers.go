package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/chat"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/material"
	"github.com/mltutor/mltutor/internal/quiz"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	pages, err := s.deps.Extractor.Extract(header.Filename, file)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	id := materialID(header.Filename)
	s.deps.Materials.Register(material.Material{
		ID:        id,
		Title:     header.Filename,
		Source:    material.SourceUpload,
		CreatedAt: time.Now(),
	})

	count, err := s.deps.Ingestor.Ingest(r.Context(), id, pages)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.deps.Materials.MarkIndexed(id, count); err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"filename":    header.Filename,
		"material_id": id,
		"chunk_count": count,
	})
}

// materialID derives a stable id from the uploaded file name.
func materialID(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.ToLower(base)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	id := strings.Trim(b.String(), "-")
	if id == "" {
		id = "upload"
	}
	return id
}

func (s *Server) handleMaterials(w http.ResponseWriter, _ *http.Request) {
	builtins := make([]material.Material, 0)
	uploaded := make([]material.Material, 0)
	for _, m := range s.deps.Materials.List() {
		if m.Source == material.SourceBuiltin {
			builtins = append(builtins, m)
		} else {
			uploaded = append(uploaded, m)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"builtins": builtins,
		"uploaded": uploaded,
	})
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Materials.Get(id); err != nil {
		s.respondError(w, err)
		return
	}
	chapters := s.deps.Ingestor.Chapters(id)
	if chapters == nil {
		chapters = []ingest.Chapter{}
	}
	respondJSON(w, http.StatusOK, chapters)
}

type chatRequest struct {
	Question        string       `json:"question"`
	Temperature     *float64     `json:"temperature,omitempty"`
	K               *int         `json:"k,omitempty"`
	EnableExpansion *bool        `json:"enable_expansion,omitempty"`
	UseFewshot      *bool        `json:"use_fewshot,omitempty"`
	UseMultiTurn    *bool        `json:"use_multi_turn,omitempty"`
	History         []ai.Message `json:"history,omitempty"`
	MaterialID      string       `json:"material_id,omitempty"`
}

// settings merges the request's optional knobs over the configured
// defaults.
func (req *chatRequest) settings(defaults chat.Settings, materialID string) chat.Settings {
	st := defaults
	st.MaterialID = materialID
	if req.Temperature != nil {
		st.Temperature = *req.Temperature
	}
	if req.K != nil {
		st.K = *req.K
	}
	if req.EnableExpansion != nil {
		st.Expand = *req.EnableExpansion
	}
	if req.UseFewshot != nil {
		st.FewShot = *req.UseFewshot
	}
	return st
}

// resolveChat validates a chat request and fills in the material.
func (s *Server) resolveChat(req *chatRequest) (chat.Settings, []ai.Message, error) {
	if strings.TrimSpace(req.Question) == "" {
		return chat.Settings{}, nil, fmt.Errorf("question must not be empty")
	}
	if req.K != nil && *req.K <= 0 {
		return chat.Settings{}, nil, fmt.Errorf("k must be positive")
	}

	materialID := req.MaterialID
	if materialID == "" {
		if m, err := s.deps.Materials.AutoSelect(); err == nil {
			materialID = m.ID
		}
	}

	history := req.History
	if req.UseMultiTurn != nil && !*req.UseMultiTurn {
		history = nil
	}
	return req.settings(s.deps.ChatDefaults, materialID), history, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	settings, history, err := s.resolveChat(&req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	answer, err := s.deps.Orchestrator.Ask(r.Context(), req.Question, history, settings)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

type quizGenerateRequest struct {
	NumChoice  int    `json:"num_choice"`
	NumBoolean int    `json:"num_boolean"`
	Difficulty string `json:"difficulty"`
	MaterialID string `json:"material_id,omitempty"`
	ChapterID  string `json:"chapter_id,omitempty"`
}

func (s *Server) handleQuizGenerate(w http.ResponseWriter, r *http.Request) {
	var req quizGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.NumChoice < 0 || req.NumBoolean < 0 || req.NumChoice+req.NumBoolean == 0 {
		badRequest(w, "num_choice and num_boolean must be non-negative and sum to at least 1")
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = quiz.DifficultyMedium
	}

	materialID := req.MaterialID
	if materialID == "" {
		m, err := s.deps.Materials.AutoSelect()
		if err != nil {
			s.respondError(w, quiz.ErrMaterialNotIndexed)
			return
		}
		materialID = m.ID
	}

	questions, err := s.deps.Generator.Generate(r.Context(), quiz.Request{
		MaterialID: materialID,
		ChapterID:  req.ChapterID,
		Counts:     quiz.Counts{Choice: req.NumChoice, Boolean: req.NumBoolean},
		Difficulty: req.Difficulty,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	var sub quiz.Submission
	if err := decodeJSON(r, &sub); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if sub.MaterialID == "" && len(sub.Questions) > 0 {
		sub.MaterialID = sub.Questions[0].MaterialID
	}

	result, err := s.deps.Evaluator.Evaluate(r.Context(), sub)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleQuizWrong(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	questions, err := s.deps.Reviewer.Batch(r.Context(), r.URL.Query().Get("material_id"), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

func (s *Server) handleReportOverview(w http.ResponseWriter, r *http.Request) {
	materialID := r.URL.Query().Get("material_id")
	overview, err := s.deps.Analytics.Overview(r.Context(), materialID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	topics, err := s.deps.Analytics.FocusTopics(r.Context(), materialID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"overview":     overview,
		"focus_topics": topics,
	})
}

func (s *Server) handleReportTimeline(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	points, err := s.deps.Analytics.Timeline(r.Context(), r.URL.Query().Get("material_id"), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func (s *Server) handleReportDiagnostic(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Diagnostician.Diagnose(r.Context(), r.URL.Query().Get("material_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"markdown": text})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
