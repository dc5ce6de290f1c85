// Package cachekey maps (feed URL, article UID, voice) triples to cache file
// paths.
package cachekey

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"feed2podcast/internal/services"
)

const (
	// AudioExt is the extension of every rendered episode.
	AudioExt = ".mp3"
	// DemoDir is the reserved subtree exempt from eviction.
	DemoDir = "demo"
)

var (
	// ErrMissingHost reports an absolute URL without a host component.
	ErrMissingHost = errors.New("url has no host")
	// ErrEscapesRoot reports a derived path outside its allowed directory.
	ErrEscapesRoot = errors.New("path escapes cache root")
	// ErrInvalidVoice reports an empty voice or one containing path separators.
	ErrInvalidVoice = errors.New("invalid voice name")
)

// Segment derives a path segment from a URL-like string. Absolute URLs yield
// lowercased host+path; anything that is not an absolute URL is returned
// verbatim.
func Segment(input string) (string, error) {
	parsed, err := url.Parse(input)
	if err != nil || parsed.Scheme == "" {
		return input, nil
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("%q: %w", input, ErrMissingHost)
	}
	return host + parsed.EscapedPath(), nil
}

// Path returns cacheRoot/<feed segment>/<uid segment>/<voice>.mp3 without
// touching the filesystem.
func Path(cacheRoot, feedURL, uid, voice string) (string, error) {
	if err := checkVoice(voice); err != nil {
		return "", err
	}
	feedSeg, err := Segment(feedURL)
	if err != nil {
		return "", services.Wrap(services.ErrBadRequest, "cachekey", "derive", "feed url", err)
	}
	uidSeg, err := Segment(uid)
	if err != nil {
		return "", services.Wrap(services.ErrBadRequest, "cachekey", "derive", "article uid", err)
	}
	dir := filepath.Join(cacheRoot, feedSeg, uidSeg)
	if !within(cacheRoot, dir) {
		return "", services.Wrap(services.ErrBadRequest, "cachekey", "derive", "", ErrEscapesRoot)
	}
	if within(filepath.Join(cacheRoot, DemoDir), dir) {
		return "", services.Wrap(services.ErrBadRequest, "cachekey", "derive", "feed url maps into the demo subtree", ErrEscapesRoot)
	}
	return filepath.Join(dir, voice+AudioExt), nil
}

// CachePath derives the episode path and creates its parent directories.
func CachePath(cacheRoot, feedURL, uid, voice string) (string, error) {
	path, err := Path(cacheRoot, feedURL, uid, voice)
	if err != nil {
		return "", err
	}
	if err := ensureParent(path); err != nil {
		return "", err
	}
	return path, nil
}

// DemoPath returns cacheRoot/demo/<model segment>/<voice>.mp3 and creates its
// parent directories.
func DemoPath(cacheRoot, model, voice string) (string, error) {
	if err := checkVoice(voice); err != nil {
		return "", err
	}
	modelSeg, err := Segment(model)
	if err != nil {
		return "", services.Wrap(services.ErrBadRequest, "cachekey", "derive demo", "model", err)
	}
	demoRoot := filepath.Join(cacheRoot, DemoDir)
	dir := filepath.Join(demoRoot, modelSeg)
	if !within(demoRoot, dir) || dir == demoRoot {
		return "", services.Wrap(services.ErrBadRequest, "cachekey", "derive demo", "", ErrEscapesRoot)
	}
	path := filepath.Join(dir, voice+AudioExt)
	if err := ensureParent(path); err != nil {
		return "", err
	}
	return path, nil
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrInternalIO, "cachekey", "create directory", filepath.Dir(path), err)
	}
	return nil
}

func checkVoice(voice string) error {
	if strings.TrimSpace(voice) == "" || voice == "." || voice == ".." || strings.ContainsAny(voice, `/\`) {
		return services.Wrap(services.ErrBadRequest, "cachekey", "derive", fmt.Sprintf("voice %q", voice), ErrInvalidVoice)
	}
	return nil
}

// within reports whether child is root or lies beneath it.
func within(root, child string) bool {
	rel, err := filepath.Rel(root, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
