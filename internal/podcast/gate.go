package podcast

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"feed2podcast/internal/services"
)

// Gate bounds concurrent generations and dedupes work per cache path.
type Gate struct {
	slots   *semaphore.Weighted
	flight  singleflight.Group
	timeout time.Duration
}

// NewGate returns a gate admitting slots concurrent generations, each bounded
// by timeout when it is positive. Values of slots below one are treated as
// one.
func NewGate(slots int, timeout time.Duration) *Gate {
	if slots < 1 {
		slots = 1
	}
	return &Gate{slots: semaphore.NewWeighted(int64(slots)), timeout: timeout}
}

// run executes fn at most once per key among concurrent callers while holding
// a slot. fn runs on a context detached from the caller, so an abandoned
// request may still populate the cache; the caller itself stops waiting when
// ctx ends.
func (g *Gate) run(ctx context.Context, key string, fn func(context.Context) (result, error)) (result, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (any, error) {
		work := detached
		if g.timeout > 0 {
			var cancel context.CancelFunc
			work, cancel = context.WithTimeout(detached, g.timeout)
			defer cancel()
		}
		if err := g.slots.Acquire(work, 1); err != nil {
			return result{}, services.Wrap(services.ErrUnavailable, "podcast", "acquire generation slot", "", err)
		}
		defer g.slots.Release(1)
		return fn(work)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return result{}, res.Err
		}
		return res.Val.(result), nil
	case <-ctx.Done():
		return result{}, services.Wrap(services.ErrUnavailable, "podcast", "wait for generation", "", ctx.Err())
	}
}

type result struct {
	audio     []byte
	generated bool
}
