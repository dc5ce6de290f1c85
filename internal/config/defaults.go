package config

const (
	defaultPublicURL                = "http://127.0.0.1:3000"
	defaultBind                     = "0.0.0.0"
	defaultPort                     = 3000
	defaultRateLimitPerSec          = 10
	defaultRateLimitBurst           = 20
	defaultCacheDir                 = "~/.cache/feed2podcast"
	defaultStateDir                 = "~/.local/state/feed2podcast"
	defaultTTSBaseURL               = "http://127.0.0.1:5000/v1"
	defaultTTSModel                 = "kokoro"
	defaultTTSTimeoutSeconds        = 300
	defaultGenerationSlots          = 1
	defaultGenerationTimeoutSeconds = 900
	defaultFetchTimeoutSeconds      = 30
	defaultUserAgent                = "feed2podcast/dev"
	defaultFeedCacheEntries         = 64
	defaultFeedCacheTTLSeconds      = 120
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			PublicURL:       defaultPublicURL,
			Bind:            defaultBind,
			Port:            defaultPort,
			RateLimitPerSec: defaultRateLimitPerSec,
			RateLimitBurst:  defaultRateLimitBurst,
		},
		Paths: Paths{
			CacheDir: defaultCacheDir,
			StateDir: defaultStateDir,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			Model:          defaultTTSModel,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Cache: Cache{
			GenerationSlots:          defaultGenerationSlots,
			GenerationTimeoutSeconds: defaultGenerationTimeoutSeconds,
		},
		Fetch: Fetch{
			TimeoutSeconds:      defaultFetchTimeoutSeconds,
			UserAgent:           defaultUserAgent,
			FeedCacheEntries:    defaultFeedCacheEntries,
			FeedCacheTTLSeconds: defaultFeedCacheTTLSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
