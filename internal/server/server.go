package server

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"feed2podcast/internal/feed"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/podcast"
)

// Episodes renders and caches audio.
type Episodes interface {
	GetOrGenerate(ctx context.Context, req podcast.Request) ([]byte, bool, error)
	Demo(ctx context.Context, voice string) ([]byte, bool, error)
	Voices(ctx context.Context) ([]string, error)
}

// FeedSource fetches origin feeds.
type FeedSource interface {
	Feed(ctx context.Context, url string) ([]byte, bool, error)
}

// Options configures the HTTP surface.
type Options struct {
	// PublicURL is the externally reachable base, used in rewritten
	// enclosures and the OpenAPI servers list.
	PublicURL       string
	DisableDocs     bool
	SharedDir       string
	RateLimitPerSec float64
	RateLimitBurst  int
	RequireGUID     bool
}

// Server routes HTTP requests to the podcast cache and feed rewriter.
type Server struct {
	opts     Options
	episodes Episodes
	feeds    FeedSource
	rewriter *feed.Rewriter
	logger   *slog.Logger
	pages    *template.Template
	docs     []byte
	handler  http.Handler
}

// New builds the HTTP handler tree.
func New(opts Options, episodes Episodes, feeds FeedSource, logger *slog.Logger) (*Server, error) {
	if episodes == nil || feeds == nil {
		return nil, errors.New("server: episodes and feed source required")
	}
	opts.PublicURL = strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/")
	if opts.PublicURL == "" {
		return nil, errors.New("server: public url required")
	}

	s := &Server{
		opts:     opts,
		episodes: episodes,
		feeds:    feeds,
		rewriter: feed.NewRewriter(logger),
		logger:   logging.NewComponentLogger(logger, "http"),
	}

	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	if !opts.DisableDocs {
		docs, err := openAPIDocument(opts.PublicURL)
		if err != nil {
			return nil, err
		}
		s.docs = docs
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/feed/build/{voice}", s.handleFeedBuild)
	mux.HandleFunc("GET /api/feed/{voice}", s.handleFeed)
	mux.HandleFunc("GET /api/content/{voice}", s.handleContent)
	mux.HandleFunc("GET /api/demo/{$}", s.handleVoices)
	mux.HandleFunc("GET /api/demo/{voice}", s.handleDemo)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /demo", s.handleDemoPage)
	if dir := strings.TrimSpace(opts.SharedDir); dir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}
	if !opts.DisableDocs {
		mux.HandleFunc("GET /docs", s.handleDocs)
	}

	var h http.Handler = mux
	if opts.RateLimitPerSec > 0 {
		limiter, err := newClientLimiter(opts.RateLimitPerSec, opts.RateLimitBurst)
		if err != nil {
			return nil, err
		}
		h = limiter.middleware(h, s)
	}
	h = s.accessLog(h)
	h = cors(h)
	h = requestID(h)
	s.handler = h
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) contentBase() string { return s.opts.PublicURL + "/api/content" }

func (s *Server) feedBase() string { return s.opts.PublicURL + "/api/feed" }
