// Package api serves conversion, analysis, planning and run history over
// HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/mattjoyce/jenkins2gha/internal/analyze"
	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/ledger"
)

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks github.com/mattjoyce/jenkins2gha/internal/api Converter,RunLedger

// Converter turns Jenkinsfile text into a conversion result.
type Converter interface {
	Convert(text string) (*convert.Result, error)
}

// RunLedger records and lists conversion runs.
type RunLedger interface {
	Record(ctx context.Context, run ledger.Run) (ledger.Run, error)
	List(ctx context.Context, limit int) ([]ledger.Run, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// Token is the bearer token required on /v1 routes. Empty disables auth.
	Token        string
	WorkflowPath string
	MaxBodyBytes int64
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS handling.
	CORSOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	converter Converter
	ledger    RunLedger
	rules     analyze.Rules
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a server. runs may be nil when the ledger is disabled.
func New(config Config, converter Converter, runs RunLedger, rules analyze.Rules, logger *slog.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	if config.WorkflowPath == "" {
		config.WorkflowPath = ".github/workflows/ci.yml"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		config:    config,
		converter: converter,
		ledger:    runs,
		rules:     rules,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if s.config.Token == "" {
		s.logger.Warn("API token is empty; /v1 routes are unauthenticated", "listen", s.config.Listen)
	}
	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/convert", s.handleConvert)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/plan", s.handlePlan)
		r.Get("/runs", s.handleListRuns)
	})
	return r
}

// requestID keeps an incoming X-Request-Id or assigns a uuid, and echoes it
// on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
