// Package server exposes the orchestrator over a small HTTP surface:
// POST /chat, GET /info, GET /healthz, GET /metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunacore/luna/internal/orchestrator"
)

// Config configures the HTTP server.
type Config struct {
	// Address to listen on, e.g. ":8080".
	Address string

	// Orchestrator handles every /chat request. Required.
	Orchestrator *orchestrator.Orchestrator

	// Name is reported by /info for operator-facing display.
	Name string

	// ReadTimeout/WriteTimeout bound request handling. Zero means the
	// http.Server default (no timeout).
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the HTTP surface's lifecycle.
type Server struct {
	cfg     Config
	httpSrv *http.Server
}

// New constructs a Server and wires its routes. Call ListenAndServe to
// start accepting connections.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("server.New: Config.Orchestrator is required")
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}

	h := &handlers{orch: cfg.Orchestrator, name: cfg.Name}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", h.healthz)
	r.Get("/info", h.info)
	r.Post("/chat", h.chat)
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		cfg: cfg,
		httpSrv: &http.Server{
			Addr:         cfg.Address,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// ListenAndServe blocks serving HTTP until ctx is cancelled or an
// unrecoverable error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}
