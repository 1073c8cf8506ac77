// Package api exposes the report pipeline over HTTP: trigger a run, list
// archived runs, fetch one run.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/state"
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pipeline"
)

// runTimeout bounds one synchronous pipeline run triggered over HTTP.
const runTimeout = 5 * time.Minute

// Runner executes one report pipeline run.
type Runner interface {
	Run(ctx context.Context, sourceText string, sectionIDs []string) (*pipeline.Result, error)
}

// Archive is the slice of the run store the server needs.
type Archive interface {
	SaveRun(ctx context.Context, runState *core.RunState, failed bool) error
	ListRuns(ctx context.Context, limit int) ([]state.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*state.StoredRun, error)
}

// Server provides the HTTP REST API.
type Server struct {
	router          chi.Router
	runner          Runner
	archive         Archive
	defaultSections []string
	logger          *logging.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDefaultSections sets the sections used when a run request names none.
func WithDefaultSections(sections []string) ServerOption {
	return func(s *Server) {
		s.defaultSections = sections
	}
}

// NewServer creates a new API server. The archive may be nil, in which case
// runs execute but are not persisted and listing endpoints return 503.
func NewServer(runner Runner, archive Archive, allowedOrigins []string, opts ...ServerOption) *Server {
	s := &Server{
		runner:  runner,
		archive: archive,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter(allowedOrigins)
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(runTimeout))
	r.Use(s.loggingMiddleware)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Get("/{runID}", s.handleGetRun)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps a domain error onto an HTTP status.
func respondDomainError(w http.ResponseWriter, err error) {
	var domainErr *core.DomainError
	if errors.As(err, &domainErr) {
		switch {
		case domainErr.Category == core.ErrCatValidation:
			respondError(w, http.StatusBadRequest, domainErr.Message)
			return
		case domainErr.Code == "not_found":
			respondError(w, http.StatusNotFound, domainErr.Message)
			return
		}
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server with graceful shutdown on ctx cancel.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	return srv.ListenAndServe()
}
