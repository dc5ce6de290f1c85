package preflight

import (
	"context"
	"strings"

	"feed2podcast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// VoiceLister is the part of the TTS client the backend check needs.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]string, error)
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, voices VoiceLister) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if strings.TrimSpace(cfg.Paths.SharedDir) != "" {
		results = append(results, CheckDirectoryReadable("Shared directory", cfg.Paths.SharedDir))
	}

	// a static voice list means the backend may not implement the voices endpoint
	if len(cfg.TTS.Voices) > 0 {
		results = append(results, CheckReachable(ctx, "TTS backend", cfg.TTS.BaseURL))
	} else {
		results = append(results, CheckVoices(ctx, "TTS backend", voices))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
