package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"feed2podcast/internal/config"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/preflight"
	"feed2podcast/internal/server"
)

type serveFlags struct {
	publicURL   string
	bind        string
	port        int
	disableDocs bool
	cacheDir    string
	sharedDir   string
	ttsURL      string
	ttsModel    string
	maxSize     float64
	maxAge      float64
	logLevel    string
	strictGUID  bool
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feed2podcast HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyServeFlags(cmd, cfg, flags); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(server.Options{
				PublicURL:       cfg.Server.PublicURL,
				DisableDocs:     cfg.Server.DisableDocs,
				SharedDir:       cfg.Paths.SharedDir,
				RateLimitPerSec: cfg.Server.RateLimitPerSec,
				RateLimitBurst:  cfg.Server.RateLimitBurst,
				RequireGUID:     flags.strictGUID,
			}, a.cache, a.fetcher, logger)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger.Info("feed2podcast starting",
				logging.String("config", ctx.configPath),
				logging.String("cache_dir", cfg.Paths.CacheDir),
				logging.String("tts_url", cfg.TTS.BaseURL),
				logging.String("tts_model", cfg.TTS.Model),
				logging.String("retention", a.janitor.Policy().String()),
			)
			for _, r := range preflight.Failed(preflight.RunAll(signalCtx, cfg, a.tts)) {
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", r.Name),
					logging.String("detail", r.Detail),
					logging.String(logging.FieldErrorHint, "run feed2podcast status"),
					logging.String(logging.FieldImpact, "episode generation may fail until resolved"),
				)
			}
			return srv.ListenAndServe(signalCtx, cfg.ListenAddr(), cfg.LockPath(), a.scheduler)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.publicURL, "url", "", "Public base URL used in rewritten feeds")
	f.StringVar(&flags.bind, "bind", "", "Listen address")
	f.IntVar(&flags.port, "port", 0, "Listen port")
	f.BoolVar(&flags.disableDocs, "disable-docs", false, "Do not serve the OpenAPI document")
	f.StringVar(&flags.cacheDir, "cache-dir", "", "Audio cache directory")
	f.StringVar(&flags.sharedDir, "shared-dir", "", "Directory served under /static/")
	f.StringVar(&flags.ttsURL, "tts-url", "", "Base URL of the OpenAI-compatible TTS backend")
	f.StringVar(&flags.ttsModel, "tts-model", "", "TTS model name")
	f.Float64Var(&flags.maxSize, "max-size", 0, "Maximum cache size in GiB (takes precedence over --max-age)")
	f.Float64Var(&flags.maxAge, "max-age", 0, "Maximum cache file age in days")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.BoolVar(&flags.strictGUID, "strict-guid", false, "Reject feeds containing items without a GUID")
	return cmd
}

// applyServeFlags copies explicitly set flags over cfg and re-validates it.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, flags serveFlags) error {
	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.Server.PublicURL = flags.publicURL
	}
	if changed("bind") {
		cfg.Server.Bind = flags.bind
	}
	if changed("port") {
		cfg.Server.Port = flags.port
	}
	if changed("disable-docs") {
		cfg.Server.DisableDocs = flags.disableDocs
	}
	if changed("cache-dir") {
		cfg.Paths.CacheDir = flags.cacheDir
	}
	if changed("shared-dir") {
		cfg.Paths.SharedDir = flags.sharedDir
	}
	if changed("tts-url") {
		cfg.TTS.BaseURL = flags.ttsURL
	}
	if changed("tts-model") {
		cfg.TTS.Model = flags.ttsModel
	}
	if changed("max-size") {
		cfg.Cache.MaxSizeGB = flags.maxSize
	}
	if changed("max-age") {
		cfg.Cache.MaxAgeDays = flags.maxAge
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if err := cfg.Finalize(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return cfg.EnsureDirectories()
}
