package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"feed2podcast/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// ErrAlreadyRunning reports that another instance holds the state lock.
var ErrAlreadyRunning = errors.New("another feed2podcast instance is already running")

// Drainer is waited on during shutdown after the listener stops.
type Drainer interface {
	Close(ctx context.Context) error
}

// ListenAndServe holds the single-instance lock at lockPath, serves on addr
// until ctx ends, then shuts down gracefully and drains each of drain.
func (s *Server) ListenAndServe(ctx context.Context, addr, lockPath string, drain ...Drainer) error {
	if lockPath != "" {
		if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		lock := flock.New(lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, lockPath)
		}
		defer func() { _ = lock.Unlock() }()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, listener, drain...)
}

// Serve runs the HTTP server on listener until ctx ends.
func (s *Server) Serve(ctx context.Context, listener net.Listener, drain ...Drainer) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("public_url", s.opts.PublicURL),
		logging.Bool("docs", !s.opts.DisableDocs),
	)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(s.logger, "http shutdown incomplete", "http_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-flight requests were cut off"),
		)
	}
	for _, d := range drain {
		if d == nil {
			continue
		}
		if err := d.Close(shutdownCtx); err != nil {
			logging.WarnWithContext(s.logger, "background work did not finish before shutdown", "shutdown_drain_timeout",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a cache sweep may have been interrupted"),
			)
		}
	}
	s.logger.Info("http server stopped")
	return serveErr
}
