package cachekey

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"feed2podcast/internal/services"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://example.com/feed.xml", "example.com/feed.xml"},
		{"https://example.com:8443/a/b?x=1#frag", "example.com/a/b"},
		{"https://example.com", "example.com"},
		{"http://Example.COM/Feed.xml", "example.com/Feed.xml"},
		{"abc123", "abc123"},
		{"", ""},
		{"550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000"},
		{"https://blog.example.org/posts/hello%20world", "blog.example.org/posts/hello%20world"},
	}
	for _, tt := range tests {
		got, err := Segment(tt.in)
		if err != nil {
			t.Fatalf("Segment(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Segment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSegmentMissingHost(t *testing.T) {
	for _, in := range []string{"file:///etc/passwd", "urn:uuid:1234", "mailto:me@example.com"} {
		if _, err := Segment(in); !errors.Is(err, ErrMissingHost) {
			t.Fatalf("Segment(%q) error = %v, want ErrMissingHost", in, err)
		}
	}
}

func TestSegmentDeterministic(t *testing.T) {
	a, _ := Segment("http://example.com/feed.xml")
	b, _ := Segment("http://example.com/feed.xml")
	if a != b {
		t.Fatalf("expected identical segments, got %q and %q", a, b)
	}
}

func TestCachePathCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	path, err := CachePath(root, "http://example.com/feed.xml", "abc123", "alloy")
	if err != nil {
		t.Fatalf("CachePath returned error: %v", err)
	}
	want := filepath.Join(root, "example.com", "feed.xml", "abc123", "alloy.mp3")
	if path != want {
		t.Fatalf("CachePath = %q, want %q", path, want)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("expected parent directory to exist: %v", err)
	}
	again, err := CachePath(root, "http://example.com/feed.xml", "abc123", "alloy")
	if err != nil || again != path {
		t.Fatalf("second CachePath = %q, %v", again, err)
	}
}

func TestCachePathDirectoryFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "example.com")
	if err := os.WriteFile(blocker, []byte("file"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := CachePath(root, "http://example.com/feed.xml", "abc123", "alloy")
	if !errors.Is(err, services.ErrInternalIO) {
		t.Fatalf("expected internal io error, got %v", err)
	}
}

func TestPathRejectsBadInput(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name           string
		feed, uid, vox string
		want           error
	}{
		{"missing host", "file:///feed.xml", "abc", "alloy", ErrMissingHost},
		{"traversal uid", "http://example.com/feed.xml", "../../../../etc", "alloy", ErrEscapesRoot},
		{"traversal feed", "../outside", "abc", "alloy", ErrEscapesRoot},
		{"demo subtree", "demo", "x", "alloy", ErrEscapesRoot},
		{"slash voice", "http://example.com/f", "abc", "a/b", ErrInvalidVoice},
		{"empty voice", "http://example.com/f", "abc", "", ErrInvalidVoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Path(root, tt.feed, tt.uid, tt.vox)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, services.ErrBadRequest) {
				t.Fatalf("expected bad request marker, got %v", err)
			}
		})
	}
}

func TestDistinctTriplesDoNotCollide(t *testing.T) {
	root := t.TempDir()
	a, _ := Path(root, "http://example.com/feed.xml", "abc", "alloy")
	b, _ := Path(root, "http://example.com/feed.xml", "abc", "echo")
	c, _ := Path(root, "http://example.com/feed.xml", "abd", "alloy")
	if a == b || a == c || b == c {
		t.Fatalf("unexpected collision: %q %q %q", a, b, c)
	}
}

func TestDemoPath(t *testing.T) {
	root := t.TempDir()
	path, err := DemoPath(root, "kokoro", "af_alloy")
	if err != nil {
		t.Fatalf("DemoPath returned error: %v", err)
	}
	want := filepath.Join(root, DemoDir, "kokoro", "af_alloy.mp3")
	if path != want {
		t.Fatalf("DemoPath = %q, want %q", path, want)
	}
	if _, err := DemoPath(root, "..", "v"); !errors.Is(err, ErrEscapesRoot) {
		t.Fatalf("expected escape error, got %v", err)
	}
}
