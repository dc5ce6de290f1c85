package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"feed2podcast/internal/extract"
	"feed2podcast/internal/feed"
	"feed2podcast/internal/services"
)

// feedParams reads url, ignore, normalize and selector from the query string.
// normalize defaults to true when absent.
func feedParams(r *http.Request) (feed.Params, error) {
	q := r.URL.Query()
	p := feed.Params{
		FeedURL:   strings.TrimSpace(q.Get("url")),
		Selector:  strings.TrimSpace(q.Get("selector")),
		Normalize: true,
	}
	if p.FeedURL == "" {
		return p, services.Wrap(services.ErrBadRequest, "http", "parse query", "url parameter is required", nil)
	}
	parsed, err := url.Parse(p.FeedURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return p, services.Wrap(services.ErrBadRequest, "http", "parse query", fmt.Sprintf("url %q is not an absolute http(s) URL", p.FeedURL), nil)
	}
	for _, ig := range q["ignore"] {
		if ig = strings.TrimSpace(ig); ig != "" {
			p.Ignore = append(p.Ignore, ig)
		}
	}
	if raw := strings.TrimSpace(q.Get("normalize")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, services.Wrap(services.ErrBadRequest, "http", "parse query", fmt.Sprintf("normalize %q is not a boolean", raw), nil)
		}
		p.Normalize = v
	}
	selectors := append([]string(nil), p.Ignore...)
	if p.Selector != "" {
		selectors = append(selectors, p.Selector)
	}
	if err := extract.ValidateSelectors(selectors...); err != nil {
		return p, err
	}
	return p, nil
}

func pathVoice(r *http.Request) (string, error) {
	voice := strings.TrimSpace(r.PathValue("voice"))
	if voice == "" {
		return "", services.Wrap(services.ErrBadRequest, "http", "parse path", "voice is required", nil)
	}
	return voice, nil
}
