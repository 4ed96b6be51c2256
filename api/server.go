// Package api provides the HTTP REST surface over the knowledge graph.
//
// All endpoints are thin adapters: tenant resolution, JSON shaping, and
// dashboard recording happen here; every semantic decision lives in the
// core packages.
//
//	GET  /health                  →  liveness probe
//	GET  /ready                   →  readiness probe (storage health)
//	POST /api/operations/store    →  raw node upsert
//	POST /api/operations/lookup   →  raw node fetch
//	POST /api/operations/purge    →  purge acknowledgement
//	GET  /api/lookup              →  capsule lookup by key
//	POST /api/ingest/capsule      →  capsule ingest
//	POST /api/capsules/purge      →  capsule purge by key(s)
//	GET  /api/overview            →  dashboard counters
//	GET  /api/history             →  dashboard history
//	POST /api/history/clear       →  drop dashboard history
//	GET  /api/scedge/status       →  Scedge bridge status
//	GET  /api/scedge/lookup       →  proxied Scedge lookup
//	POST /api/scedge/store        →  proxied Scedge store
//	POST /api/scedge/purge        →  proxied Scedge purge
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - ratelimit.go: per-IP token bucket middleware
//   - health.go: health check endpoints (/health, /ready)
//   - operations.go: raw node operation endpoints
//   - capsule.go: capsule ingest/lookup/purge endpoints
//   - dashboard.go: dashboard counter endpoints
//   - scedge.go: Scedge proxy endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/memophor/synagraph/internal/capsule"
	"github.com/memophor/synagraph/internal/config"
	"github.com/memophor/synagraph/internal/dashboard"
	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/repository"
	"github.com/memophor/synagraph/internal/scedge"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "0.0.0.0:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second

	// Rate limit: tokens per second refilled per client IP, and burst size.
	rateLimitPerSecond = 50
	rateLimitBurst     = 100
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux     *http.ServeMux
	limiter *rateLimiter
	logger  log.Logger

	// Handlers
	health     *HealthHandler
	operations *OperationsHandler
	capsules   *CapsuleHandler
	dashboard  *DashboardHandler
	scedge     *ScedgeHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg *config.Config, version string, repos repository.Bundle, svc *capsule.Service, dash *dashboard.Handle, bridge *scedge.Bridge, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		limiter:    newRateLimiter(rateLimitPerSecond, rateLimitBurst),
		logger:     logger,
		health:     NewHealthHandler(cfg.ServiceName, version, repos.Nodes, logger),
		operations: NewOperationsHandler(cfg, repos, dash, logger),
		capsules:   NewCapsuleHandler(cfg, svc, logger),
		dashboard:  NewDashboardHandler(dash),
		scedge:     NewScedgeHandler(bridge, logger),
	}

	s.health.RegisterRoutes(mux)
	s.operations.RegisterRoutes(mux)
	s.capsules.RegisterRoutes(mux)
	s.dashboard.RegisterRoutes(mux)
	s.scedge.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → rate limit → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
