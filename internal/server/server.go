// Package server exposes the wave tracker over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/iudanet/tubewave/internal/config"
	"github.com/iudanet/tubewave/internal/server/handlers"
	"github.com/iudanet/tubewave/internal/server/middleware"
)

const healthPath = "/api/v1/health"

// Server serves the wave API until its context is done
type Server struct {
	http            *http.Server
	logger          *slog.Logger
	limiter         *middleware.RateLimiter
	shutdownTimeout time.Duration
}

// New builds the router for service
func New(cfg config.HTTPConfig, service handlers.WaveService, logger *slog.Logger, version string) *Server {
	s := &Server{
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg, service, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes(cfg config.HTTPConfig, service handlers.WaveService, version string) http.Handler {
	health := handlers.NewHealthHandler(s.logger, version)
	waves := handlers.NewWavesHandler(s.logger, service)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware(s.logger, healthPath))
	r.Use(middleware.RecoveryMiddleware(s.logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", chimw.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.Health)
		r.Get("/waves/last", waves.LastWave)
		r.Get("/waves/initial", waves.InitialWave)
		r.Get("/sync", waves.LastWaves)

		// пишущие эндпоинты под лимитом
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/waves", waves.RecordWave)
			r.Put("/sync", waves.UpdateSync)
			r.Post("/save", waves.Save)
		})
	})
	return r
}

// Run listens until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	defer func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down", "cause", context.Cause(ctx))
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
