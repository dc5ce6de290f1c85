package extract

import (
	"errors"
	"testing"

	"feed2podcast/internal/services"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Example</title>
  <link>http://example.com/</link>
  <description>Example feed</description>
  <item>
    <title>First</title>
    <link>http://example.com/first</link>
    <guid>abc123</guid>
    <description><![CDATA[<p>Hello <script>x</script>World</p>]]></description>
  </item>
  <item>
    <title>Second</title>
    <guid isPermaLink="true">http://example.com/second</guid>
    <description><![CDATA[<div><p>Keep this.</p><aside class="ad">Buy now!</aside><style>p{color:red}</style></div>]]></description>
  </item>
  <item>
    <title>Encoded only</title>
    <guid>encoded</guid>
    <content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
  </item>
  <item>
    <title>Empty</title>
    <guid>empty</guid>
  </item>
</channel>
</rss>`

func TestFromFeedStripsScript(t *testing.T) {
	text, err := FromFeed([]byte(sampleFeed), "abc123", nil)
	if err != nil {
		t.Fatalf("FromFeed returned error: %v", err)
	}
	if text != "Hello World" {
		t.Fatalf("FromFeed = %q, want %q", text, "Hello World")
	}
}

func TestFromFeedAppliesIgnoreSelectors(t *testing.T) {
	text, err := FromFeed([]byte(sampleFeed), "http://example.com/second", []string{"aside.ad"})
	if err != nil {
		t.Fatalf("FromFeed returned error: %v", err)
	}
	if text != "Keep this." {
		t.Fatalf("FromFeed = %q", text)
	}
}

func TestFromFeedFallsBackToEncodedContent(t *testing.T) {
	text, err := FromFeed([]byte(sampleFeed), "encoded", nil)
	if err != nil {
		t.Fatalf("FromFeed returned error: %v", err)
	}
	if text != "Full body" {
		t.Fatalf("FromFeed = %q", text)
	}
}

func TestFromFeedErrors(t *testing.T) {
	tests := []struct {
		name   string
		feed   string
		uid    string
		ignore []string
		reason error
		marker error
	}{
		{"missing item", sampleFeed, "nope", nil, ErrNotFound, services.ErrNotFound},
		{"no content", sampleFeed, "empty", nil, ErrNoContent, services.ErrBadRequest},
		{"bad selector", sampleFeed, "abc123", []string{"div[["}, ErrInvalidSelector, services.ErrBadRequest},
		{"not a feed", "this is not xml", "abc123", nil, nil, services.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFeed([]byte(tt.feed), tt.uid, tt.ignore)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.reason != nil && !errors.Is(err, tt.reason) {
				t.Fatalf("expected %v, got %v", tt.reason, err)
			}
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected marker %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestFromFeedAtom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <id>urn:example:feed</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Entry</title>
    <id>urn:example:entry:1</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <summary type="html">&lt;p&gt;Atom body&lt;/p&gt;</summary>
  </entry>
</feed>`
	text, err := FromFeed([]byte(atom), "urn:example:entry:1", nil)
	if err != nil {
		t.Fatalf("FromFeed returned error: %v", err)
	}
	if text != "Atom body" {
		t.Fatalf("FromFeed = %q", text)
	}
}

func TestFromHTMLJoinsMatches(t *testing.T) {
	page := `<html><body>
<nav>Menu</nav>
<article><p>First paragraph.</p><p>   </p><p>Second <span class="share">Share</span>paragraph.</p></article>
<footer>Footer</footer>
</body></html>`
	text, err := FromHTML([]byte(page), "article p", []string{".share"})
	if err != nil {
		t.Fatalf("FromHTML returned error: %v", err)
	}
	want := "First paragraph.\nSecond paragraph."
	if text != want {
		t.Fatalf("FromHTML = %q, want %q", text, want)
	}
}

func TestFromHTMLNoMatches(t *testing.T) {
	_, err := FromHTML([]byte("<p>hi</p>"), "article", nil)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestFromHTMLInvalidSelector(t *testing.T) {
	_, err := FromHTML([]byte("<p>hi</p>"), "div[", nil)
	if !errors.Is(err, ErrInvalidSelector) {
		t.Fatalf("expected ErrInvalidSelector, got %v", err)
	}
}

func TestSubstringRemovalAffectsRepeatedText(t *testing.T) {
	page := `<div class="body"><p>Subscribe today. Great read.</p><p class="cta">Subscribe today.</p></div>`
	text, err := FromHTML([]byte(page), "div.body", []string{"p.cta"})
	if err != nil {
		t.Fatalf("FromHTML returned error: %v", err)
	}
	if text != "Great read." {
		t.Fatalf("FromHTML = %q", text)
	}
}

func TestOutputIsNFC(t *testing.T) {
	page := "<p>Cafe\u0301</p>"
	text, err := FromHTML([]byte(page), "p", nil)
	if err != nil {
		t.Fatalf("FromHTML returned error: %v", err)
	}
	if text != "Caf\u00e9" {
		t.Fatalf("expected composed form, got %q", text)
	}
}

func TestValidateSelectors(t *testing.T) {
	if err := ValidateSelectors("p", "div.ad > span"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateSelectors("p", "[["); !errors.Is(err, ErrInvalidSelector) {
		t.Fatalf("expected ErrInvalidSelector, got %v", err)
	}
}
