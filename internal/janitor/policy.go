package janitor

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"feed2podcast/internal/config"
)

// Kind identifies a retention strategy.
type Kind int

const (
	KindNone Kind = iota
	KindMaxStorage
	KindMaxAge
)

// Policy is the process-wide retention bound.
type Policy struct {
	Kind     Kind
	MaxBytes int64
	MaxAge   time.Duration
}

// None disables eviction.
func None() Policy { return Policy{Kind: KindNone} }

// MaxStorage bounds the reclaimable cache size in bytes.
func MaxStorage(limit int64) Policy {
	if limit < 0 {
		limit = 0
	}
	return Policy{Kind: KindMaxStorage, MaxBytes: limit}
}

// MaxAge bounds the age of cached files.
func MaxAge(limit time.Duration) Policy {
	return Policy{Kind: KindMaxAge, MaxAge: limit}
}

// FromConfig selects the policy configured for the process. The size bound
// wins when both bounds are set.
func FromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return None()
	}
	r := cfg.RetentionPolicy()
	switch {
	case r.MaxBytes > 0:
		return MaxStorage(r.MaxBytes)
	case r.MaxAge > 0:
		return MaxAge(r.MaxAge)
	default:
		return None()
	}
}

func (p Policy) String() string {
	switch p.Kind {
	case KindMaxStorage:
		return fmt.Sprintf("max-storage(%s)", humanize.IBytes(uint64(p.MaxBytes)))
	case KindMaxAge:
		return fmt.Sprintf("max-age(%s)", p.MaxAge)
	default:
		return "none"
	}
}
