package server

import (
	"net/http"
	"strconv"

	"feed2podcast/internal/feed"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/podcast"
	"feed2podcast/internal/services"
)

func (s *Server) handleFeedBuild(w http.ResponseWriter, r *http.Request) {
	voice, err := pathVoice(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := feedParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(feed.FeedURL(s.feedBase(), voice, params)))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	voice, err := pathVoice(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := feedParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, _, err := s.feeds.Feed(r.Context(), params.FeedURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.rewriter.Rewrite(body, feed.Options{
		ContentBase: s.contentBase(),
		Voice:       voice,
		Params:      params,
		RequireGUID: s.opts.RequireGUID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Debug("feed rewritten",
		logging.String(logging.FieldURL, params.FeedURL),
		logging.String(logging.FieldVoice, voice),
		logging.Int("items", res.Rewritten),
		logging.Int("skipped", res.Skipped),
	)
	w.Header().Set("Content-Type", res.ContentType)
	_, _ = w.Write(res.Body)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	voice, err := pathVoice(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := feedParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		s.writeError(w, r, services.Wrap(services.ErrBadRequest, "http", "parse query", "uid parameter is required", nil))
		return
	}
	audio, generated, err := s.episodes.GetOrGenerate(r.Context(), podcast.Request{
		FeedURL:   params.FeedURL,
		UID:       uid,
		Voice:     voice,
		Ignore:    params.Ignore,
		Normalize: params.Normalize,
		Selector:  params.Selector,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAudio(w, audio, generated)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.episodes.Voices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if voices == nil {
		voices = []string{}
	}
	s.writeJSON(w, http.StatusOK, voices)
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	voice, err := pathVoice(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	audio, generated, err := s.episodes.Demo(r.Context(), voice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAudio(w, audio, generated)
}

func writeAudio(w http.ResponseWriter, audio []byte, generated bool) {
	h := w.Header()
	h.Set("Content-Type", "audio/mpeg")
	h.Set("Content-Length", strconv.Itoa(len(audio)))
	if generated {
		h.Set("X-Cache", "MISS")
	} else {
		h.Set("X-Cache", "HIT")
	}
	_, _ = w.Write(audio)
}
