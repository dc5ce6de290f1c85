package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

// Scheduler runs sweeps in the background after cache writes.
type Scheduler struct {
	janitor *Janitor
	logger  *slog.Logger
	timeout time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewScheduler wraps j. Each background sweep is bounded by timeout when it is
// positive.
func NewScheduler(j *Janitor, timeout time.Duration) *Scheduler {
	return &Scheduler{janitor: j, logger: j.logger, timeout: timeout}
}

// Trigger starts one sweep and returns immediately. Triggers after Close are
// ignored.
func (s *Scheduler) Trigger(ctx context.Context) {
	if s == nil || s.janitor == nil || s.janitor.policy.Kind == KindNone {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		runCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if _, err := s.janitor.Sweep(runCtx); err != nil {
			if errors.Is(err, services.ErrInternalAssertion) {
				// already logged at error level
				return
			}
			logging.WarnWithContext(s.logger, "background cache sweep failed", "cache_sweep_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `feed2podcast cache prune` to retry"),
				logging.String(logging.FieldImpact, "cache may exceed its retention bound until the next sweep"),
			)
		}
	}()
}

// Close stops accepting triggers and waits for running sweeps or ctx.
func (s *Scheduler) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
