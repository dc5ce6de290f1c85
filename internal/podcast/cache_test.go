package podcast

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feed2podcast/internal/cachekey"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
	"feed2podcast/internal/services/tts"
)

const feedURL = "http://example.com/feed.xml"

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>One</title><link>http://example.com/one</link><guid>item-1</guid>
<description><![CDATA[<p>Hello listeners.</p><aside>Sponsored</aside>]]></description></item>
</channel></rss>`

type fakeSource struct {
	mu          sync.Mutex
	feeds       map[string][]byte
	pages       map[string][]byte
	cachedFirst []byte
	feedCalls   int
	invalidated []string
	err         error
}

func (f *fakeSource) Get(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return nil, services.Wrap(services.ErrUpstream, "fake", "get", url, nil)
}

func (f *fakeSource) Feed(_ context.Context, url string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls++
	if f.err != nil {
		return nil, false, f.err
	}
	if f.cachedFirst != nil {
		body := f.cachedFirst
		f.cachedFirst = nil
		return body, true, nil
	}
	return f.feeds[url], false, nil
}

func (f *fakeSource) Invalidate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, url)
}

type fakeTTS struct {
	mu       sync.Mutex
	requests []tts.SpeechRequest
	calls    atomic.Int32
	release  chan struct{}
	started  chan struct{}
	err      error
	voices   []string
}

func (f *fakeTTS) Synthesize(ctx context.Context, req tts.SpeechRequest) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + req.Voice + ":" + req.Input), nil
}

func (f *fakeTTS) ListVoices(context.Context) ([]string, error) { return f.voices, nil }

func (f *fakeTTS) Model() string { return "tts-1" }

type countingSweeper struct{ n atomic.Int32 }

func (s *countingSweeper) Trigger(context.Context) { s.n.Add(1) }

func newTestCache(t *testing.T, src *fakeSource, synth *fakeTTS, sweeper Sweeper) *Cache {
	t.Helper()
	if src.feeds == nil {
		src.feeds = map[string][]byte{feedURL: []byte(sampleFeed)}
	}
	c, err := New(Options{Root: t.TempDir(), Fetcher: src, TTS: synth, Sweeper: sweeper, Gate: NewGate(1, time.Minute)}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func baseRequest() Request {
	return Request{FeedURL: feedURL, UID: "item-1", Voice: "alloy", Ignore: []string{"aside"}, Normalize: true}
}

func TestGetOrGenerateCachesResult(t *testing.T) {
	synth := &fakeTTS{}
	sweeper := &countingSweeper{}
	c := newTestCache(t, &fakeSource{}, synth, sweeper)

	first, generated, err := c.GetOrGenerate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !generated {
		t.Fatal("first call should generate")
	}
	second, generated, err := c.GetOrGenerate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if generated {
		t.Fatal("second call should be served from disk")
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("cached bytes differ: %q vs %q", first, second)
	}
	if synth.calls.Load() != 1 {
		t.Fatalf("expected one synthesis, got %d", synth.calls.Load())
	}
	if sweeper.n.Load() != 1 {
		t.Fatalf("expected one sweep trigger, got %d", sweeper.n.Load())
	}

	req := synth.requests[0]
	if req.Input != "Hello listeners." {
		t.Fatalf("unexpected synthesized text %q", req.Input)
	}
	if req.Normalize == nil || !*req.Normalize {
		t.Fatalf("normalize flag not forwarded: %v", req.Normalize)
	}

	want := filepath.Join(c.Root(), "example.com/feed.xml", "item-1", "alloy"+cachekey.AudioExt)
	if data, err := os.ReadFile(want); err != nil || !bytes.Equal(data, first) {
		t.Fatalf("expected audio at %s: %v", want, err)
	}
}

func TestGetOrGenerateDedupesConcurrentRequests(t *testing.T) {
	synth := &fakeTTS{release: make(chan struct{}), started: make(chan struct{}, 16)}
	c := newTestCache(t, &fakeSource{}, synth, nil)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, _, err := c.GetOrGenerate(context.Background(), baseRequest())
			if err == nil && len(audio) == 0 {
				err = errors.New("empty audio")
			}
			errs <- err
		}()
	}
	<-synth.started
	time.Sleep(50 * time.Millisecond)
	close(synth.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}
	if n := synth.calls.Load(); n != 1 {
		t.Fatalf("expected a single synthesis for one key, got %d", n)
	}
}

func TestGetOrGenerateUnknownUID(t *testing.T) {
	synth := &fakeTTS{}
	c := newTestCache(t, &fakeSource{}, synth, nil)

	req := baseRequest()
	req.UID = "missing"
	_, _, err := c.GetOrGenerate(context.Background(), req)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if synth.calls.Load() != 0 {
		t.Fatal("synthesis must not run for unknown items")
	}
}

func TestGetOrGenerateRefetchesStaleFeed(t *testing.T) {
	src := &fakeSource{cachedFirst: []byte(`<rss version="2.0"><channel><title>t</title></channel></rss>`)}
	c := newTestCache(t, src, &fakeTTS{}, nil)

	if _, _, err := c.GetOrGenerate(context.Background(), baseRequest()); err != nil {
		t.Fatalf("expected refetch to find the item: %v", err)
	}
	if src.feedCalls != 2 || len(src.invalidated) != 1 || src.invalidated[0] != feedURL {
		t.Fatalf("expected one invalidation and refetch, calls=%d invalidated=%v", src.feedCalls, src.invalidated)
	}
}

func TestGetOrGenerateUpstreamFailuresLeaveNoFile(t *testing.T) {
	synth := &fakeTTS{err: services.Wrap(services.ErrUpstream, "tts", "synthesize", "", errors.New("boom"))}
	c := newTestCache(t, &fakeSource{}, synth, nil)

	_, _, err := c.GetOrGenerate(context.Background(), baseRequest())
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	path, _ := cachekey.Path(c.Root(), feedURL, "item-1", "alloy")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no cache file after failure, stat err=%v", err)
	}
}

func TestGetOrGenerateRejectsInvalidSelector(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(t, src, &fakeTTS{}, nil)

	req := baseRequest()
	req.Ignore = []string{"div[["}
	_, _, err := c.GetOrGenerate(context.Background(), req)
	if !errors.Is(err, services.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if src.feedCalls != 0 {
		t.Fatal("feed must not be fetched for invalid selectors")
	}
}

func TestGetOrGenerateSelectorMode(t *testing.T) {
	src := &fakeSource{pages: map[string][]byte{
		"http://example.com/one": []byte(`<html><body><article><p>Full story.</p><p class="ad">Buy</p></article><p>footer</p></body></html>`),
	}}
	synth := &fakeTTS{}
	c := newTestCache(t, src, synth, nil)

	req := baseRequest()
	req.Selector = "article p"
	req.Ignore = []string{".ad"}
	if _, _, err := c.GetOrGenerate(context.Background(), req); err != nil {
		t.Fatalf("selector mode: %v", err)
	}
	if got := strings.TrimSpace(synth.requests[0].Input); got != "Full story." {
		t.Fatalf("unexpected page text %q", got)
	}
}

func TestGetOrGenerateCallerCancelledWhileQueued(t *testing.T) {
	synth := &fakeTTS{release: make(chan struct{}), started: make(chan struct{}, 4)}
	c := newTestCache(t, &fakeSource{}, synth, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrGenerate(context.Background(), baseRequest())
		done <- err
	}()
	<-synth.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	other := baseRequest()
	other.Voice = "echo"
	_, _, err := c.GetOrGenerate(ctx, other)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable while gate is held, got %v", err)
	}

	close(synth.release)
	if err := <-done; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	// the abandoned generation still completes and populates the cache
	if _, _, err := c.GetOrGenerate(context.Background(), other); err != nil {
		t.Fatalf("abandoned request did not complete: %v", err)
	}
	if n := synth.calls.Load(); n != 2 {
		t.Fatalf("expected two syntheses, got %d", n)
	}
}

func TestDemo(t *testing.T) {
	synth := &fakeTTS{}
	sweeper := &countingSweeper{}
	c := newTestCache(t, &fakeSource{}, synth, sweeper)

	audio, generated, err := c.Demo(context.Background(), "alloy")
	if err != nil || !generated || len(audio) == 0 {
		t.Fatalf("demo: generated=%v err=%v", generated, err)
	}
	if _, generated, _ = c.Demo(context.Background(), "alloy"); generated {
		t.Fatal("second demo should be cached")
	}
	if synth.requests[0].Input != DemoPhrase || synth.requests[0].Normalize != nil {
		t.Fatalf("unexpected demo request %+v", synth.requests[0])
	}
	if _, err := os.Stat(filepath.Join(c.Root(), cachekey.DemoDir, "tts-1", "alloy.mp3")); err != nil {
		t.Fatalf("demo file missing: %v", err)
	}
	if sweeper.n.Load() != 0 {
		t.Fatal("demo generation must not schedule a sweep")
	}
}

func TestVoices(t *testing.T) {
	synth := &fakeTTS{voices: []string{"backend"}}
	c := newTestCache(t, &fakeSource{}, synth, nil)
	got, err := c.Voices(context.Background())
	if err != nil || len(got) != 1 || got[0] != "backend" {
		t.Fatalf("backend voices = %v, %v", got, err)
	}

	c.voices = []string{"alloy", "echo"}
	got, err = c.Voices(context.Background())
	if err != nil || len(got) != 2 || got[0] != "alloy" {
		t.Fatalf("static voices = %v, %v", got, err)
	}
}

func startGeneration(c *Cache, voice string) <-chan error {
	done := make(chan error, 1)
	go func() {
		req := baseRequest()
		req.Voice = voice
		_, _, err := c.GetOrGenerate(context.Background(), req)
		done <- err
	}()
	return done
}

func TestGateSerializesDifferentKeys(t *testing.T) {
	synth := &fakeTTS{release: make(chan struct{}), started: make(chan struct{}, 4)}
	c := newTestCache(t, &fakeSource{}, synth, nil)

	first := startGeneration(c, "alloy")
	<-synth.started
	second := startGeneration(c, "echo")

	select {
	case <-synth.started:
		t.Fatal("second key started synthesis while the only slot was held")
	case <-time.After(100 * time.Millisecond):
	}

	close(synth.release)
	select {
	case <-synth.started:
	case <-time.After(5 * time.Second):
		t.Fatal("second key never started after the slot was released")
	}
	for _, done := range []<-chan error{first, second} {
		if err := <-done; err != nil {
			t.Fatalf("generation failed: %v", err)
		}
	}
	if n := synth.calls.Load(); n != 2 {
		t.Fatalf("expected two syntheses, got %d", n)
	}
}

func TestGateRunsDifferentKeysInParallelWithTwoSlots(t *testing.T) {
	synth := &fakeTTS{release: make(chan struct{}), started: make(chan struct{}, 4)}
	c, err := New(Options{
		Root:    t.TempDir(),
		Fetcher: &fakeSource{feeds: map[string][]byte{feedURL: []byte(sampleFeed)}},
		TTS:     synth,
		Gate:    NewGate(2, time.Minute),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := startGeneration(c, "alloy")
	second := startGeneration(c, "echo")
	for i := range 2 {
		select {
		case <-synth.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of 2 generations started with two slots", i)
		}
	}

	close(synth.release)
	for _, done := range []<-chan error{first, second} {
		if err := <-done; err != nil {
			t.Fatalf("generation failed: %v", err)
		}
	}
}
