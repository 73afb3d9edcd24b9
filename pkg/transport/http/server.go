package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/dojo/pkg/auth"
	"github.com/rhuss/dojo/pkg/observability"
	"github.com/rhuss/dojo/pkg/transport"
)

// Server runs the adapter behind authentication, metrics and health
// endpoints.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// Auth guards the /v1 routes. Nil accepts every caller.
	Auth        *auth.Chain
	RateLimiter auth.RateLimiter
}

// DefaultServerConfig returns loopback defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "127.0.0.1:8737",
		MaxBodySize:     2 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    180 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithConfig replaces the server configuration.
func WithConfig(cfg ServerConfig) ServerOption {
	return func(s *Server) { s.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server for h with the default middleware chain.
func NewServer(h transport.Handler, opts ...ServerOption) *Server {
	s := &Server{config: DefaultServerConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.ShutdownTimeout <= 0 {
		s.config.ShutdownTimeout = DefaultServerConfig().ShutdownTimeout
	}

	s.adapter = NewAdapter(h, Config{MaxBodySize: s.config.MaxBodySize}, transport.Defaults(s.logger))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	bypass := []string{"/healthz"}
	if s.config.MetricsPath != "" {
		mux.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
		bypass = append(bypass, s.config.MetricsPath)
	}

	var v1 http.Handler = s.adapter.Handler()
	if s.config.Auth != nil {
		v1 = auth.Middleware(s.config.Auth, s.config.RateLimiter, bypass, s.logger)(v1)
	}
	mux.Handle("/v1/", v1)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      observability.MetricsMiddleware(mux),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Adapter returns the operation adapter.
func (s *Server) Adapter() *Adapter {
	return s.adapter
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
