// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

// Package server exposes the manager over HTTP: generation, embeddings,
// stats, provider health, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarathi-ai/sarathi/internal/manager"
	"github.com/sarathi-ai/sarathi/internal/provider"
	"github.com/sarathi-ai/sarathi/internal/telemetry"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// Backend is the slice of the manager the HTTP layer needs.
type Backend interface {
	Invoke(ctx context.Context, req *manager.Request) (*provider.Result, error)
	Embed(ctx context.Context, text string) ([]float64, error)
	Stats() manager.Stats
	Providers() []manager.ProviderInfo
}

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr      string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps a chi router with a huma API and the HTTP listener.
type Server struct {
	router  chi.Router
	api     huma.API
	cfg     Config
	backend Backend
	logger  *slog.Logger
}

// New creates a Server with middleware, the API operations, and an
// optional metrics scrape endpoint.
func New(cfg Config, backend Backend, logger *slog.Logger, metrics *telemetry.Collector) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, sarathierr.New(sarathierr.CodeServerStartFailure, "listen address is required")
	}
	if backend == nil {
		return nil, sarathierr.New(sarathierr.CodeServerStartFailure, "backend is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("Sarathi", "0.1.0")
	humaConfig.Info.Description = "Resilient multi-provider LLM access API"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router:  r,
		api:     api,
		cfg:     cfg,
		backend: backend,
		logger:  logger,
	}
	srv.registerOperations()

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return sarathierr.Wrapf(err, sarathierr.CodeServerStartFailure,
			"listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return sarathierr.Wrap(err, sarathierr.CodeServerStartFailure, "serving http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sarathierr.Wrap(err, sarathierr.CodeServerShutdownFailure, "shutting down")
	}
	return <-errCh
}

// requestID assigns each request an identifier, honoring one supplied by
// the caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with status and latency.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", ww.Header().Get("X-Request-Id"))
		})
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
