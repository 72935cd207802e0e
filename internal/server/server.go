// Package server provides the HTTP API for the product manager agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/agent"
	"github.com/hyperjump/pmagent/internal/config"
	"github.com/hyperjump/pmagent/internal/contextstore"
	"github.com/hyperjump/pmagent/internal/feedback"
	"github.com/hyperjump/pmagent/internal/metrics"
	"github.com/hyperjump/pmagent/internal/retrieval"
)

// WatchService reports the directories being watched for context sources.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the agent API.
type Server struct {
	store     *contextstore.Store
	retriever *retrieval.Retriever
	agents    *agent.Agents
	feedback  *feedback.Service
	metrics   *metrics.Metrics
	watch     WatchService
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithMetrics exposes m at GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithWatch reports watched source directories in /api/v1/status.
func WithWatch(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithFeedback enables the /api/v1/feedback endpoints.
func WithFeedback(f *feedback.Service) Option {
	return func(s *Server) { s.feedback = f }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store *contextstore.Store,
	retriever *retrieval.Retriever,
	agents *agent.Agents,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     store,
		retriever: retriever,
		agents:    agents,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router. Start serves it; tests call it directly.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/context", s.handleAddContext)
		r.Post("/context/retrieve", s.handleRetrieveContext)
		r.Get("/context/nearest", s.handleNearest)

		r.Post("/prioritize-features", s.handlePrioritizeFeatures)
		r.Get("/prioritize-features", s.handlePrioritizeFeaturesQuery)
		r.Post("/groom-backlog", s.handleBacklog(agent.Grooming, false))
		r.Get("/groom-backlog", s.handleBacklog(agent.Grooming, true))
		r.Post("/suggest-tasks", s.handleBacklog(agent.Suggestion, false))
		r.Get("/suggest-tasks", s.handleBacklog(agent.Suggestion, true))
		r.Post("/team-insights", s.handleTeamInsights)
		r.Get("/team-insights", s.handleTeamInsightsQuery)

		r.Post("/feedback", s.handleCreateFeedback)
		r.Get("/feedback", s.handleListFeedback)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
