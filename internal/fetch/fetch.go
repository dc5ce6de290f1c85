// Package fetch retrieves origin feeds and article pages over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	lrucache "github.com/hashicorp/golang-lru"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 32 << 20
)

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// CacheEntries bounds the feed body cache; zero disables it.
	CacheEntries int
	CacheTTL     time.Duration
	HTTPClient   *http.Client
}

// Fetcher performs origin GETs and keeps recently fetched feed bodies for a
// short time so a rewritten feed and its first enclosure request share one
// download.
type Fetcher struct {
	client    *http.Client
	userAgent string
	cache     *lrucache.Cache
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type cachedBody struct {
	body    []byte
	fetched time.Time
}

// New constructs a Fetcher.
func New(opts Options, logger *slog.Logger) (*Fetcher, error) {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	f := &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		ttl:       opts.CacheTTL,
		now:       time.Now,
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
	if opts.CacheEntries > 0 && opts.CacheTTL > 0 {
		cache, err := lrucache.New(opts.CacheEntries)
		if err != nil {
			return nil, fmt.Errorf("fetch: create feed cache: %w", err)
		}
		f.cache = cache
	}
	return f, nil
}

// Get downloads rawURL and returns the response body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrBadRequest, "fetch", "parse url", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, services.Wrap(services.ErrBadRequest, "fetch", "parse url", fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return nil, services.Wrap(services.ErrBadRequest, "fetch", "parse url", "missing host", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrBadRequest, "fetch", "new request", rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, services.Wrap(services.ErrUnavailable, "fetch", "get", rawURL, err)
		}
		return nil, services.Wrap(services.ErrUpstream, "fetch", "get", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrUpstream, "fetch", "get", fmt.Sprintf("%s: http %d", rawURL, resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "fetch", "read body", rawURL, err)
	}
	if len(body) > maxBodyBytes {
		return nil, services.Wrap(services.ErrUpstream, "fetch", "read body", fmt.Sprintf("%s: body exceeds %d bytes", rawURL, maxBodyBytes), nil)
	}
	return body, nil
}

// Feed returns the body of a feed, served from the short-lived cache when a
// fresh copy is held. cached reports whether the network was skipped.
func (f *Fetcher) Feed(ctx context.Context, rawURL string) (body []byte, cached bool, err error) {
	if f.cache != nil {
		if v, ok := f.cache.Get(rawURL); ok {
			entry := v.(cachedBody)
			if f.now().Sub(entry.fetched) < f.ttl {
				return entry.body, true, nil
			}
			f.cache.Remove(rawURL)
		}
	}
	body, err = f.Get(ctx, rawURL)
	if err != nil {
		return nil, false, err
	}
	if f.cache != nil {
		f.cache.Add(rawURL, cachedBody{body: body, fetched: f.now()})
	}
	f.logger.Debug("feed fetched",
		logging.String(logging.FieldURL, rawURL),
		logging.Bytes("size", int64(len(body))),
	)
	return body, false, nil
}

// Invalidate drops any cached body for rawURL.
func (f *Fetcher) Invalidate(rawURL string) {
	if f.cache != nil {
		f.cache.Remove(rawURL)
	}
}
