// Package server provides HTTP server lifecycle management.
// Includes graceful shutdown handling for production deployments.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function that shuts down a component gracefully.
type ShutdownFunc func(ctx context.Context) error

// Options configures the HTTP listener.
type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	shutdownFuncs   []ShutdownFunc
	mu              sync.Mutex
}

// New creates a new Server instance.
func New(handler http.Handler, opts Options, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       2 * opts.WriteTimeout,
		},
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logger,
	}
}

// OnShutdown registers a function to be called during graceful shutdown.
// Shutdown functions are called in reverse order (LIFO) after the HTTP server stops,
// so the store registered first is closed last.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownFuncs = append(s.shutdownFuncs, func(ctx context.Context) error {
		s.logger.Info("shutting down component", "name", name)
		if err := fn(ctx); err != nil {
			s.logger.Error("component shutdown error", "name", name, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		s.logger.Info("component stopped", "name", name)
		return nil
	})
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received", "cause", context.Cause(ctx))
		return s.gracefulShutdown()
	}
}

// gracefulShutdown stops the HTTP server, then every registered component.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// Phase 1: Stop accepting new connections
	s.logger.Info("phase 1: stopping HTTP server", "timeout", s.shutdownTimeout)
	s.httpServer.SetKeepAlivesEnabled(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.logger.Info("HTTP server stopped")

	s.mu.Lock()
	funcs := s.shutdownFuncs
	s.mu.Unlock()

	// Phase 2: Shutdown registered components in reverse order
	s.logger.Info("phase 2: stopping registered components", "count", len(funcs))

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		s.logger.Error("shutdown completed with errors", "error_count", len(errs))
		return errors.Join(errs...)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
