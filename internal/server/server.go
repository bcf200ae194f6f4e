// Package server exposes the detection engine over a local HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/engine"
	"github.com/docveil/docveil/internal/events"
	"github.com/docveil/docveil/internal/feedback"
	"github.com/docveil/docveil/internal/logger"
)

// Server hosts the detection API on localhost.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	engine   *engine.Engine
	feedback *feedback.Store
	router   *mux.Router
	server   *http.Server
	hub      *events.Hub
	limiter  *rate.Limiter
}

// New creates the API server around an already-built engine.
func New(cfg *config.Config, eng *engine.Engine, log *logger.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log.WithComponent("server"),
		engine: eng,
		router: mux.NewRouter(),
	}

	if cfg.Events.Enabled {
		s.hub = events.NewHub(cfg.Events, log.WithComponent("events"))
	}

	if cfg.Feedback.Enabled {
		store, err := feedback.Open(cfg.Feedback.Path, log.WithComponent("feedback"))
		if err != nil {
			return nil, fmt.Errorf("open feedback store: %w", err)
		}
		s.feedback = store
	}

	if cfg.Server.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond), cfg.Server.RateLimit.Burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/detect", s.handleDetect).Methods("POST")
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/recognizers", s.handleRecognizers).Methods("GET")

	if s.feedback != nil {
		api.HandleFunc("/feedback", s.handleFeedbackSave).Methods("POST")
		api.HandleFunc("/feedback/stats", s.handleFeedbackStats).Methods("GET")
	}

	if s.hub != nil {
		s.router.HandleFunc(s.config.Events.Path, s.hub.ServeWS).Methods("GET")
	}
}

// Start runs the HTTP server until it is shut down. The engine warms its
// ML backend in the background so the port is usable immediately.
func (s *Server) Start() error {
	s.logger.Info("Starting docveil API server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("events", s.hub != nil),
		zap.Bool("feedback", s.feedback != nil),
	)

	if s.hub != nil {
		go s.hub.Run()
	}
	go s.engine.Warm(context.Background())

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and closes stores.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping docveil API server")
	err := s.server.Shutdown(ctx)
	if s.feedback != nil {
		if cerr := s.feedback.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
