package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeTTS()
	c.normalizeFetch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(strings.TrimSpace(c.Paths.CacheDir)); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.SharedDir, err = expandPath(strings.TrimSpace(c.Paths.SharedDir)); err != nil {
		return fmt.Errorf("paths.shared_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.PublicURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicURL), "/")
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = defaultPublicURL
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.BaseURL), "/")
	c.TTS.Model = strings.TrimSpace(c.TTS.Model)
	if c.TTS.Model == "" {
		c.TTS.Model = defaultTTSModel
	}
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	voices := c.TTS.Voices[:0]
	seen := make(map[string]struct{}, len(c.TTS.Voices))
	for _, v := range c.TTS.Voices {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		voices = append(voices, v)
	}
	c.TTS.Voices = voices
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}
