package services

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	episodeKey
)

// Episode identifies the cache entry a context is working on. Demo samples
// carry only a voice.
type Episode struct {
	FeedURL string
	UID     string
	Voice   string
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEpisode records which episode ctx renders so log lines emitted deep in
// the pipeline can name it.
func WithEpisode(ctx context.Context, ep Episode) context.Context {
	if ep == (Episode{}) {
		return ctx
	}
	return context.WithValue(ctx, episodeKey, ep)
}

// EpisodeFromContext returns the episode attached by WithEpisode.
func EpisodeFromContext(ctx context.Context) (Episode, bool) {
	ep, ok := ctx.Value(episodeKey).(Episode)
	return ep, ok
}
