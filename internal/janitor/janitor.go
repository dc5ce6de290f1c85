package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"feed2podcast/internal/cachekey"
	"feed2podcast/internal/fileutil"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

// staleTempAge is how long an unpublished temp file may linger before a sweep
// treats it as abandoned.
const staleTempAge = time.Hour

// Janitor sweeps one cache root.
type Janitor struct {
	root    string
	demoDir string
	policy  Policy
	logger  *slog.Logger
	now     func() time.Time
	statfs  statfsFunc
}

// Option customizes a Janitor.
type Option func(*Janitor)

// WithClock overrides the time source used for age comparisons.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// New constructs a Janitor for root.
func New(root string, policy Policy, logger *slog.Logger, opts ...Option) *Janitor {
	j := &Janitor{
		root:    filepath.Clean(root),
		demoDir: filepath.Join(filepath.Clean(root), cachekey.DemoDir),
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "janitor"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Policy reports the policy the janitor enforces.
func (j *Janitor) Policy() Policy { return j.policy }

// Result summarizes one sweep.
type Result struct {
	Policy      Policy
	Reclaimable int64
	ToFree      int64
	Freed       int64
	Deleted     int
	Failed      int
	Shortfall   bool
}

// Sweep applies the janitor's policy once.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	return j.SweepWith(ctx, j.policy)
}

// SweepWith applies policy once, ignoring the configured one.
func (j *Janitor) SweepWith(ctx context.Context, policy Policy) (Result, error) {
	res := Result{Policy: policy}
	if _, err := os.Stat(j.root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			j.logger.DebugContext(ctx, "cache root missing; nothing to sweep", logging.String(logging.FieldPath, j.root))
			return res, nil
		}
		return res, services.Wrap(services.ErrInternalIO, "janitor", "stat root", j.root, err)
	}

	var err error
	switch policy.Kind {
	case KindMaxStorage:
		err = j.sweepSize(ctx, policy.MaxBytes, &res)
	case KindMaxAge:
		err = j.sweepAge(ctx, policy.MaxAge, &res)
	default:
		return res, nil
	}
	if err != nil {
		return res, err
	}

	if res.Deleted > 0 || res.Failed > 0 {
		j.logger.InfoContext(ctx, "cache sweep complete",
			logging.String("policy", policy.String()),
			logging.Int("deleted", res.Deleted),
			logging.Int("failed", res.Failed),
			logging.Bytes("freed", res.Freed),
		)
	}
	return res, nil
}

func (j *Janitor) sweepSize(ctx context.Context, limit int64, res *Result) error {
	demoSize, err := fileutil.TreeSize(j.demoDir)
	if err != nil {
		return services.Wrap(services.ErrInternalIO, "janitor", "measure demo", j.demoDir, err)
	}
	total, err := fileutil.TreeSize(j.root)
	if err != nil {
		return services.Wrap(services.ErrInternalIO, "janitor", "measure cache", j.root, err)
	}
	if total < demoSize {
		logging.ErrorWithContext(j.logger, "cache size smaller than demo subtree", "cache_invariant_violated",
			logging.Int64("total_bytes", total),
			logging.Int64("demo_bytes", demoSize),
			logging.String(logging.FieldErrorHint, "demo directory may live outside the cache root"),
		)
		return services.Wrap(services.ErrInternalAssertion, "janitor", "sweep",
			fmt.Sprintf("total %d < demo %d", total, demoSize), nil)
	}

	res.Reclaimable = total - demoSize
	if res.Reclaimable <= limit {
		return nil
	}
	res.ToFree = res.Reclaimable - limit

	candidates, err := j.candidates()
	if err != nil {
		return err
	}
	for _, file := range candidates {
		if res.Freed >= res.ToFree {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.remove(ctx, file, res)
	}
	if res.Freed < res.ToFree {
		res.Shortfall = true
		logging.WarnWithContext(j.logger, "cache sweep could not reclaim enough space", "cache_reclaim_shortfall",
			logging.Bytes("to_free", res.ToFree),
			logging.Bytes("freed", res.Freed),
			logging.Int("candidates", len(candidates)),
			logging.String(logging.FieldErrorHint, "raise cache.max_size_gb or inspect undeletable files"),
			logging.String(logging.FieldImpact, "cache remains above its size bound"),
		)
	}
	return nil
}

func (j *Janitor) sweepAge(ctx context.Context, limit time.Duration, res *Result) error {
	candidates, err := j.candidates()
	if err != nil {
		return err
	}
	now := j.now()
	for _, file := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if now.Sub(file.ModTime) <= limit {
			// sorted oldest first
			break
		}
		j.remove(ctx, file, res)
	}
	return nil
}

// candidates lists removable files oldest first. Files under the demo subtree
// and fresh temp files are excluded.
func (j *Janitor) candidates() ([]fileutil.FileInfo, error) {
	files, err := fileutil.WalkFiles(j.root, j.demoDir)
	if err != nil {
		return nil, services.Wrap(services.ErrInternalIO, "janitor", "list cache", j.root, err)
	}
	now := j.now()
	out := files[:0]
	for _, f := range files {
		if fileutil.IsTempName(f.Path) && now.Sub(f.ModTime) <= staleTempAge {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ModTime.Before(out[b].ModTime)
	})
	return out, nil
}

// remove deletes one file and records the outcome. Freed bytes use the size
// captured when the file was listed.
func (j *Janitor) remove(ctx context.Context, file fileutil.FileInfo, res *Result) {
	err := os.Remove(file.Path)
	switch {
	case err == nil:
		res.Freed += file.Size
		res.Deleted++
		j.logger.DebugContext(ctx, "removed cache file",
			logging.String(logging.FieldPath, file.Path),
			logging.Bytes("size", file.Size),
		)
	case errors.Is(err, fs.ErrNotExist):
		// removed by a concurrent sweep
	default:
		res.Failed++
		logging.WarnWithContext(j.logger, "failed to remove cache file", "cache_file_remove_failed",
			logging.String(logging.FieldPath, file.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "file kept; sweep continues"),
		)
	}
}
