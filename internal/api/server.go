package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/engine"
	"github.com/seantiz/hamevo/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	// Synchronous runs hold the request open until the run finishes.
	writeTimeout = 5 * time.Minute
)

// Server serves the runs API.
type Server struct {
	router   *chi.Mux
	store    store.Store
	registry *backend.Registry
	engine   *engine.Engine
	logger   *slog.Logger
	addr     string
	started  time.Time
}

// NewServer wires the router, middleware and routes.
func NewServer(addr string, s store.Store, reg *backend.Registry, eng *engine.Engine, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		store:    s,
		registry: reg,
		engine:   eng,
		logger:   logger,
		addr:     addr,
		started:  time.Now(),
	}

	srv.router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		srv.requestLogger,
		instrument,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", "Last-Event-ID"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
			MaxAge:         300,
		}),
	)

	srv.router.Get("/healthz", srv.handleHealthz)
	srv.router.Handle("/metrics", metricsHandler())

	srv.router.Route("/v1", func(r chi.Router) {
		r.Get("/backends", srv.handleListBackends)
		r.Get("/stats", srv.handleGetStats)
		r.Post("/circuits", srv.handleBuildCircuit)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", srv.handleCreateRun)
			r.Post("/async", srv.handleAsyncRun)
			r.Get("/", srv.handleListRuns)
			r.Get("/{id}", srv.handleGetRun)
			r.Delete("/{id}", srv.handleKillRun)
			r.Get("/{id}/events", srv.handleStreamEvents)
			r.Get("/{id}/events/history", srv.handleGetEventHistory)
		})
	})

	return srv
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "cause", context.Cause(ctx))
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
