// Package server exposes the anonymization pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/config"
	"github.com/rfranks/ehr-anonymizer/internal/events"
	"github.com/rfranks/ehr-anonymizer/internal/logger"
	"github.com/rfranks/ehr-anonymizer/internal/pipeline"
	"github.com/rfranks/ehr-anonymizer/internal/web"
)

// Server hosts the pipeline API, the event stream, and the dashboard.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	pipeline   *pipeline.Pipeline
	hub        *events.Hub
	router     *mux.Router
	httpServer *http.Server
	version    string
}

// New wires the router and HTTP server.
func New(cfg *config.Config, pipe *pipeline.Pipeline, hub *events.Hub, version string, log *logger.Logger) *Server {
	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		pipeline: pipe,
		hub:      hub,
		router:   mux.NewRouter(),
		version:  version,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/patients/{collection}/{id}/anonymize", s.handleAnonymize).Methods(http.MethodPost)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.hub != nil && s.config.Events.Enabled {
		path := s.config.Events.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.hub.ServeWS)
	}

	s.router.HandleFunc("/", web.DashboardHandler).Methods(http.MethodGet)
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.config.Server.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}
