package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener and public URL configuration.
type Server struct {
	PublicURL       string  `toml:"public_url" env:"FEED2PODCAST_URL"`
	Bind            string  `toml:"bind" env:"FEED2PODCAST_BIND"`
	Port            int     `toml:"port" env:"FEED2PODCAST_PORT"`
	DisableDocs     bool    `toml:"disable_docs" env:"FEED2PODCAST_DISABLE_DOCS"`
	RateLimitPerSec float64 `toml:"rate_limit_per_sec" env:"FEED2PODCAST_RATE_LIMIT"`
	RateLimitBurst  int     `toml:"rate_limit_burst" env:"FEED2PODCAST_RATE_BURST"`
}

// Paths contains directory configuration.
type Paths struct {
	CacheDir  string `toml:"cache_dir" env:"FEED2PODCAST_CACHE_DIR"`
	SharedDir string `toml:"shared_dir" env:"FEED2PODCAST_SHARED_DIR"`
	StateDir  string `toml:"state_dir" env:"FEED2PODCAST_STATE_DIR"`
}

// TTS contains configuration for the OpenAI-compatible speech backend.
type TTS struct {
	BaseURL        string   `toml:"base_url" env:"FEED2PODCAST_TTS_API"`
	Model          string   `toml:"model" env:"FEED2PODCAST_TTS_MODEL"`
	Voices         []string `toml:"voices" env:"FEED2PODCAST_TTS_VOICES" envSeparator:","`
	APIKey         string   `toml:"api_key" env:"FEED2PODCAST_TTS_API_KEY"`
	TimeoutSeconds int      `toml:"timeout_seconds" env:"FEED2PODCAST_TTS_TIMEOUT"`
}

// Cache contains retention and generation settings for rendered audio.
type Cache struct {
	// MaxSizeGB bounds the non-demo cache size in GiB. Takes precedence over MaxAgeDays.
	MaxSizeGB                float64 `toml:"max_size_gb" env:"FEED2PODCAST_CACHE_MAX_SIZE"`
	MaxAgeDays               float64 `toml:"max_age_days" env:"FEED2PODCAST_CACHE_MAX_AGE"`
	GenerationSlots          int     `toml:"generation_slots" env:"FEED2PODCAST_GENERATION_SLOTS"`
	GenerationTimeoutSeconds int     `toml:"generation_timeout_seconds" env:"FEED2PODCAST_GENERATION_TIMEOUT"`
}

// Fetch contains origin HTTP client settings.
type Fetch struct {
	TimeoutSeconds      int    `toml:"timeout_seconds" env:"FEED2PODCAST_FETCH_TIMEOUT"`
	UserAgent           string `toml:"user_agent" env:"FEED2PODCAST_USER_AGENT"`
	FeedCacheEntries    int    `toml:"feed_cache_entries" env:"FEED2PODCAST_FEED_CACHE_ENTRIES"`
	FeedCacheTTLSeconds int    `toml:"feed_cache_ttl_seconds" env:"FEED2PODCAST_FEED_CACHE_TTL"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"FEED2PODCAST_LOG_FORMAT"`
	Level  string `toml:"level" env:"FEED2PODCAST_LOG_LEVEL"`
	File   string `toml:"file" env:"FEED2PODCAST_LOG_FILE"`
}

// Config encapsulates all configuration values for feed2podcast.
//
// Sections:
//   - Server: listener, public URL, docs toggle, rate limits
//   - Paths: cache, shared web assets and state directories
//   - TTS: speech backend URL, model and optional static voice list
//   - Cache: retention policy and generation concurrency
//   - Fetch: origin HTTP client and feed body cache
//   - Logging: log format, level and optional file
type Config struct {
	Server  Server  `toml:"server"`
	Paths   Paths   `toml:"paths"`
	TTS     TTS     `toml:"tts"`
	Cache   Cache   `toml:"cache"`
	Fetch   Fetch   `toml:"fetch"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/feed2podcast/config.toml")
}

// Load locates and parses a configuration file, applies FEED2PODCAST_*
// environment overrides, then normalizes and validates the result.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes and validates the config. Call it again after applying
// command-line overrides.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("feed2podcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "feed2podcast.lock")
}

// Retention describes the configured cache retention bound. At most one of
// the fields is non-zero.
type Retention struct {
	MaxBytes int64
	MaxAge   time.Duration
}

const (
	bytesPerGiB = 1 << 30
	day         = 24 * time.Hour

	// Largest bounds that still fit in an int64 byte count or duration.
	maxSizeGB  = math.MaxInt64 / bytesPerGiB
	maxAgeDays = math.MaxInt64 / int64(day)
)

// RetentionPolicy resolves the retention bound. The size bound wins when both
// are configured. Bounds too large to represent saturate.
func (c *Config) RetentionPolicy() Retention {
	if c.Cache.MaxSizeGB > 0 {
		return Retention{MaxBytes: saturate(c.Cache.MaxSizeGB * bytesPerGiB)}
	}
	if c.Cache.MaxAgeDays > 0 {
		return Retention{MaxAge: time.Duration(saturate(c.Cache.MaxAgeDays * float64(day)))}
	}
	return Retention{}
}

func saturate(v float64) int64 {
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// GenerationTimeout bounds a single audio generation.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Cache.GenerationTimeoutSeconds) * time.Second
}

// FeedCacheTTL is how long fetched feed bodies are reused.
func (c *Config) FeedCacheTTL() time.Duration {
	return time.Duration(c.Fetch.FeedCacheTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
