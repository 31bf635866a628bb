// Package server provides the HTTP server for the measurement station.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/metrics"
	"github.com/ayusman/bodyfit/internal/server/api"
	"github.com/ayusman/bodyfit/internal/store"
)

// Config holds the server configuration. Optional parts left nil disable
// their routes.
type Config struct {
	StaticDir      string
	AllowedOrigins []string
	Store          *store.Store
	Session        api.SessionController
	Hub            *Hub
	Preview        *Preview
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	// Health adds fields to the /api/health response.
	Health func() map[string]any
}

// Server represents the HTTP server for the station.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	start   time.Time
	logger  *zap.Logger

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	s.handler = withMiddleware(s.mux, config.AllowedOrigins, logger)
	return s
}

// handle registers h under pattern with request metrics.
func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.config.Metrics.WrapHandler(pattern, h))
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.handle("/api/health", http.HandlerFunc(s.handleHealth))
	s.handle("/api/garments", http.HandlerFunc(api.GarmentsHandler))

	if s.config.Store != nil {
		captures := api.NewCaptureHandler(s.config.Store, s.logger)
		s.handle("/api/captures", captures)
		s.handle("/api/captures/", captures)
	}

	if s.config.Session != nil {
		s.handle("/api/session", api.NewSessionHandler(s.config.Session))
	}

	if s.config.Hub != nil {
		s.handle("/api/live", s.config.Hub)
	}

	if s.config.Preview != nil {
		s.handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Health != nil {
		for k, v := range s.config.Health() {
			response[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until Shutdown is called, which makes it
// return nil.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and disconnects live clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
