package podcast

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"feed2podcast/internal/cachekey"
	"feed2podcast/internal/extract"
	"feed2podcast/internal/fileutil"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
	"feed2podcast/internal/services/tts"
)

// FeedSource fetches origin documents.
type FeedSource interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Feed(ctx context.Context, url string) ([]byte, bool, error)
	Invalidate(url string)
}

// Synthesizer renders text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.SpeechRequest) ([]byte, error)
	ListVoices(ctx context.Context) ([]string, error)
	Model() string
}

// Sweeper is notified after new audio lands in the cache.
type Sweeper interface {
	Trigger(ctx context.Context)
}

// Request identifies one episode.
type Request struct {
	FeedURL   string
	UID       string
	Voice     string
	Ignore    []string
	Normalize bool
	// Selector, when set, extracts text from the item's linked page instead
	// of its description.
	Selector string
}

// Options wires a Cache.
type Options struct {
	Root    string
	Fetcher FeedSource
	TTS     Synthesizer
	Sweeper Sweeper
	Gate    *Gate
	// Voices is the static voice list; the backend is queried when empty.
	Voices []string
}

// Cache serves rendered episodes from disk and generates missing ones.
type Cache struct {
	root    string
	fetcher FeedSource
	tts     Synthesizer
	sweeper Sweeper
	gate    *Gate
	voices  []string
	logger  *slog.Logger
}

// New constructs a Cache.
func New(opts Options, logger *slog.Logger) (*Cache, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("podcast: cache root required")
	}
	if opts.Fetcher == nil || opts.TTS == nil {
		return nil, errors.New("podcast: fetcher and tts client required")
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewGate(1, 0)
	}
	return &Cache{
		root:    opts.Root,
		fetcher: opts.Fetcher,
		tts:     opts.TTS,
		sweeper: opts.Sweeper,
		gate:    gate,
		voices:  append([]string(nil), opts.Voices...),
		logger:  logging.NewComponentLogger(logger, "podcast"),
	}, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string { return c.root }

// GetOrGenerate returns the audio for req. generated is false when the bytes
// came from disk without any synthesis.
func (c *Cache) GetOrGenerate(ctx context.Context, req Request) (audio []byte, generated bool, err error) {
	if strings.TrimSpace(req.FeedURL) == "" || strings.TrimSpace(req.UID) == "" {
		return nil, false, services.Wrap(services.ErrBadRequest, "podcast", "validate", "url and uid are required", nil)
	}
	selectors := append([]string(nil), req.Ignore...)
	if req.Selector != "" {
		selectors = append(selectors, req.Selector)
	}
	if err := extract.ValidateSelectors(selectors...); err != nil {
		return nil, false, err
	}

	path, err := cachekey.CachePath(c.root, req.FeedURL, req.UID, req.Voice)
	if err != nil {
		return nil, false, err
	}
	ctx = services.WithEpisode(ctx, services.Episode{FeedURL: req.FeedURL, UID: req.UID, Voice: req.Voice})
	if data, ok, err := readCached(path); err != nil || ok {
		return data, false, err
	}

	res, err := c.gate.run(ctx, path, func(work context.Context) (result, error) {
		if data, ok, err := readCached(path); err != nil || ok {
			return result{audio: data}, err
		}
		audio, err := c.render(work, req)
		if err != nil {
			return result{}, err
		}
		if err := c.publish(path, audio); err != nil {
			return result{}, err
		}
		if c.sweeper != nil {
			c.sweeper.Trigger(work)
		}
		return result{audio: audio, generated: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.audio, res.generated, nil
}

func (c *Cache) render(ctx context.Context, req Request) ([]byte, error) {
	logger := logging.WithContext(ctx, c.logger)
	start := time.Now()

	text, err := c.articleText(ctx, req)
	if err != nil {
		return nil, err
	}
	normalize := req.Normalize
	audio, err := c.tts.Synthesize(ctx, tts.SpeechRequest{Input: text, Voice: req.Voice, Normalize: &normalize})
	if err != nil {
		return nil, err
	}
	logger.Info("episode generated",
		logging.Int("text_chars", len(text)),
		logging.Bytes("audio_size", int64(len(audio))),
		logging.Duration("elapsed", time.Since(start)),
	)
	return audio, nil
}

// articleText locates the item in the feed and extracts its text. A feed
// served from the short-lived cache that lacks the item is refetched once.
func (c *Cache) articleText(ctx context.Context, req Request) (string, error) {
	body, cached, err := c.fetcher.Feed(ctx, req.FeedURL)
	if err != nil {
		return "", err
	}
	item, err := extract.FindItem(body, req.UID)
	if err != nil && cached && errors.Is(err, extract.ErrNotFound) {
		logging.WithContext(ctx, c.logger).Debug("item missing from cached feed; refetching")
		c.fetcher.Invalidate(req.FeedURL)
		if body, _, err = c.fetcher.Feed(ctx, req.FeedURL); err != nil {
			return "", err
		}
		item, err = extract.FindItem(body, req.UID)
	}
	if err != nil {
		return "", err
	}

	if req.Selector == "" {
		return extract.ItemText(item, req.Ignore)
	}
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return "", services.Wrap(services.ErrBadRequest, "podcast", "selector mode", fmt.Sprintf("item %q has no link", req.UID), extract.ErrNoContent)
	}
	page, err := c.fetcher.Get(ctx, link)
	if err != nil {
		return "", err
	}
	return extract.FromHTML(page, req.Selector, req.Ignore)
}

func (c *Cache) publish(path string, audio []byte) error {
	if err := fileutil.WriteFileAtomic(path, audio, 0o644); err != nil {
		return services.Wrap(services.ErrInternalIO, "podcast", "write cache file", path, err)
	}
	return nil
}

// readCached returns the file at path when it exists.
func readCached(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, services.Wrap(services.ErrInternalIO, "podcast", "read cache file", path, err)
}
