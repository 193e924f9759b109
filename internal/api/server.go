package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/grading-engine/internal/catalog"
	"github.com/terra-clan/grading-engine/internal/config"
	"github.com/terra-clan/grading-engine/internal/gate"
	"github.com/terra-clan/grading-engine/internal/models"
	"github.com/terra-clan/grading-engine/internal/storage"
)

// Grader runs the grading pipeline. Satisfied by *progression.Orchestrator.
type Grader interface {
	Grade(ctx context.Context, req *models.GradeRequest, onResult func(models.TestResult)) (*models.GradeResponse, error)
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	grader         Grader
	catalog        *catalog.Loader
	repo           storage.Repository
	gate           *gate.Gate
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server. gate may be nil to disable
// submission debouncing.
func NewServer(
	cfg config.ServerConfig,
	grader Grader,
	loader *catalog.Loader,
	repo storage.Repository,
	g *gate.Gate,
) *Server {
	s := &Server{
		config:         cfg,
		grader:         grader,
		catalog:        loader,
		repo:           repo,
		gate:           g,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Grading
		r.With(s.authMiddleware.RequirePermission("grade:write")).Post("/grade", s.handleGrade)
		r.With(s.authMiddleware.RequirePermission("grade:write")).Get("/grade/stream", s.handleGradeStream)

		// Catalog
		r.Route("/modules", func(r chi.Router) {
			r.Use(s.authMiddleware.RequirePermission("catalog:read"))
			r.Get("/", s.handleListModules)
			r.Get("/{moduleID}", s.handleGetModule)
			r.Get("/{moduleID}/exercises", s.handleListExercises)
			r.Get("/{moduleID}/exercises/{code}", s.handleGetExercise)
		})

		r.With(s.authMiddleware.RequirePermission("catalog:read")).Get("/achievements", s.handleListAchievements)

		// Per-user progress
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(s.authMiddleware.RequirePermission("progress:read"))
			r.Get("/progress", s.handleGetUserProgress)
			r.Get("/attempts", s.handleListUserAttempts)
			r.Get("/achievements", s.handleListUserAchievements)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
