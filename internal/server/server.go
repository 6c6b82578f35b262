package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/registry"
	"github.com/mbeckett/dremelink/internal/settings"
	"github.com/mbeckett/dremelink/internal/version"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

// Server is the dremelink HTTP server. It exposes the core endpoints
// and mounts every module's routes under /api/v1/{module}/.
type Server struct {
	httpServer *http.Server
	registry   *registry.Registry
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a new Server instance. settingsHandler may be nil when the
// settings API is not wired up, as in some tests.
func New(addr string, reg *registry.Registry, settingsHandler *settings.Handler, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 15 * time.Second,
			// Write timeout covers print file uploads, which can take a
			// while on a slow printer link.
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: reg,
		logger:   logger,
		mux:      mux,
	}

	s.registerCoreRoutes()
	s.mountModuleRoutes()
	if settingsHandler != nil {
		settingsHandler.RegisterRoutes(mux)
	}

	return s
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/modules", s.handleModules)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// mountModuleRoutes registers all module routes under /api/v1/{module}/.
func (s *Server) mountModuleRoutes() {
	for moduleName, routes := range s.registry.AllRoutes() {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, moduleName, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("module", moduleName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health plus each module's own report.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	modules := make(map[string]plugin.HealthStatus)
	for _, p := range s.registry.All() {
		if hc, ok := p.(plugin.HealthChecker); ok {
			modules[p.Info().Name] = hc.Health(r.Context())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Dremelink-Version", version.Short())
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": "dremelink",
		"version": version.Map(),
		"modules": modules,
	})
}

// handleModules returns the list of registered modules.
func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.All()
	type moduleResponse struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
	}
	info := make([]moduleResponse, 0, len(plugins))
	for _, p := range plugins {
		pi := p.Info()
		info = append(info, moduleResponse{
			Name:        pi.Name,
			Version:     pi.Version,
			Description: pi.Description,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Dremelink-Version", version.Short())
	json.NewEncoder(w).Encode(info)
}
