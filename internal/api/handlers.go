package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/grading-engine/internal/models"
	"github.com/terra-clan/grading-engine/internal/progression"
)

// maxCodeBytes bounds submission size before anything touches the sandbox
const maxCodeBytes = 64 * 1024

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Grading handlers

func validateGradeRequest(req *models.GradeRequest) (code, message string) {
	if req.UserID == "" {
		return "validation_error", "user_id is required"
	}
	if req.TaskID == "" {
		return "validation_error", "task_id is required"
	}
	if strings.TrimSpace(req.Code) == "" {
		return "validation_error", "code is required"
	}
	if len(req.Code) > maxCodeBytes {
		return "validation_error", "code exceeds maximum size"
	}
	return "", ""
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req models.GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if code, message := validateGradeRequest(&req); code != "" {
		respondError(w, http.StatusBadRequest, code, message)
		return
	}

	ok, err := s.gate.TryAcquire(r.Context(), req.UserID, req.TaskID)
	if err != nil {
		slog.Warn("debounce gate unavailable, admitting request", "error", err)
	} else if !ok {
		respondError(w, http.StatusTooManyRequests, "too_many_requests", "a submission for this task is already being graded")
		return
	}

	resp, err := s.grader.Grade(r.Context(), &req, nil)
	if err != nil {
		if errors.Is(err, progression.ErrExerciseNotFound) {
			respondError(w, http.StatusNotFound, "exercise_not_found", "exercise not found")
			return
		}
		slog.Error("grading failed", "error", err, "user", req.UserID, "task", req.TaskID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to grade submission")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Catalog handlers

// publicExercise is the learner-facing exercise view: hidden test cases
// are stripped entirely.
type publicExercise struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	ModuleID     string            `json:"module_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Difficulty   string            `json:"difficulty"`
	BaseXP       int               `json:"base_xp"`
	VisibleTests []models.TestCase `json:"visible_test_cases"`
	HiddenCount  int               `json:"hidden_test_count"`
}

func toPublicExercise(ex *models.Exercise) publicExercise {
	visible := ex.VisibleTestCases()
	return publicExercise{
		ID:           ex.ID,
		Code:         ex.Code,
		ModuleID:     ex.ModuleID,
		Title:        ex.Title,
		Description:  ex.Description,
		Difficulty:   ex.Difficulty,
		BaseXP:       ex.BaseXP,
		VisibleTests: visible,
		HiddenCount:  len(ex.TestCases) - len(visible),
	}
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	modules := s.catalog.ListModules()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"modules": modules,
		"total":   len(modules),
	})
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "moduleID")

	module, ok := s.catalog.Module(id)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "module not found")
		return
	}

	respondJSON(w, http.StatusOK, module)
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "moduleID")

	if _, ok := s.catalog.Module(id); !ok {
		respondError(w, http.StatusNotFound, "not_found", "module not found")
		return
	}

	exercises := s.catalog.ModuleExercises(id)
	public := make([]publicExercise, 0, len(exercises))
	for _, ex := range exercises {
		public = append(public, toPublicExercise(ex))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"exercises": public,
		"total":     len(public),
	})
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")
	code := chi.URLParam(r, "code")

	ex, ok := s.catalog.Exercise(moduleID + "/" + code)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "exercise not found")
		return
	}

	respondJSON(w, http.StatusOK, toPublicExercise(ex))
}

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	defs, err := s.repo.ListActiveAchievements(r.Context())
	if err != nil {
		slog.Error("failed to list achievements", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list achievements")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": defs,
		"total":        len(defs),
	})
}

// Per-user handlers

func (s *Server) handleGetUserProgress(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	progress, err := s.repo.GetProgress(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get progress", "error", err, "user", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get progress")
		return
	}
	if progress == nil {
		// user has never been graded; report the zero state
		progress = &models.UserProgress{UserID: userID, TotalXP: 0, CurrentLevel: 1}
	}

	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListUserAttempts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50 // default
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	attempts, err := s.repo.ListAttempts(r.Context(), userID, limit, offset)
	if err != nil {
		slog.Error("failed to list attempts", "error", err, "user", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list attempts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"total":    len(attempts),
	})
}

func (s *Server) handleListUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	earned, err := s.repo.ListUserAchievements(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list user achievements", "error", err, "user", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list user achievements")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": earned,
		"total":        len(earned),
	})
}
