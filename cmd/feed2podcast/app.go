package main

import (
	"fmt"
	"log/slog"
	"time"

	"feed2podcast/internal/config"
	"feed2podcast/internal/fetch"
	"feed2podcast/internal/janitor"
	"feed2podcast/internal/podcast"
	"feed2podcast/internal/services/tts"
)

// sweepTimeout bounds one background sweep.
const sweepTimeout = 10 * time.Minute

// app holds the components built from one config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   *fetch.Fetcher
	tts       *tts.Client
	janitor   *janitor.Janitor
	scheduler *janitor.Scheduler
	cache     *podcast.Cache
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	fetcher, err := fetch.New(fetch.Options{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		UserAgent:    cfg.Fetch.UserAgent,
		CacheEntries: cfg.Fetch.FeedCacheEntries,
		CacheTTL:     cfg.FeedCacheTTL(),
	}, logger)
	if err != nil {
		return nil, err
	}
	client := tts.NewClient(tts.Config{
		BaseURL:        cfg.TTS.BaseURL,
		Model:          cfg.TTS.Model,
		APIKey:         cfg.TTS.APIKey,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})
	j := janitor.New(cfg.Paths.CacheDir, janitor.FromConfig(cfg), logger)
	scheduler := janitor.NewScheduler(j, sweepTimeout)

	cache, err := podcast.New(podcast.Options{
		Root:    cfg.Paths.CacheDir,
		Fetcher: fetcher,
		TTS:     client,
		Sweeper: scheduler,
		Gate:    podcast.NewGate(cfg.Cache.GenerationSlots, cfg.GenerationTimeout()),
		Voices:  cfg.TTS.Voices,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build podcast cache: %w", err)
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		fetcher:   fetcher,
		tts:       client,
		janitor:   j,
		scheduler: scheduler,
		cache:     cache,
	}, nil
}
