package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := validateAbsoluteURL(c.Server.PublicURL); err != nil {
		return fmt.Errorf("server.public_url: %w", err)
	}
	if c.Server.RateLimitPerSec < 0 {
		return errors.New("server.rate_limit_per_sec must be >= 0")
	}
	if c.Server.RateLimitPerSec > 0 && c.Server.RateLimitBurst < 1 {
		return errors.New("server.rate_limit_burst must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.BaseURL == "" {
		return errors.New("tts.base_url must be set")
	}
	if err := validateAbsoluteURL(c.TTS.BaseURL); err != nil {
		return fmt.Errorf("tts.base_url: %w", err)
	}
	if c.TTS.TimeoutSeconds < 0 {
		return errors.New("tts.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxSizeGB < 0 || math.IsNaN(c.Cache.MaxSizeGB) {
		return errors.New("cache.max_size_gb must be >= 0")
	}
	if c.Cache.MaxSizeGB > maxSizeGB {
		return fmt.Errorf("cache.max_size_gb must be at most %d", int64(maxSizeGB))
	}
	if c.Cache.MaxAgeDays < 0 || math.IsNaN(c.Cache.MaxAgeDays) {
		return errors.New("cache.max_age_days must be >= 0")
	}
	if c.Cache.MaxAgeDays > float64(maxAgeDays) {
		return fmt.Errorf("cache.max_age_days must be at most %d", maxAgeDays)
	}
	if c.Cache.GenerationSlots < 1 {
		return errors.New("cache.generation_slots must be at least 1")
	}
	if c.Cache.GenerationTimeoutSeconds < 1 {
		return errors.New("cache.generation_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.New("fetch.timeout_seconds must be >= 0")
	}
	if c.Fetch.FeedCacheEntries < 0 {
		return errors.New("fetch.feed_cache_entries must be >= 0")
	}
	if c.Fetch.FeedCacheTTLSeconds < 0 {
		return errors.New("fetch.feed_cache_ttl_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
