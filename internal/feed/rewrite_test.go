package feed

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

const rssSource = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Example News</title>
  <link>http://example.com/</link>
  <description>All the news</description>
  <language>en</language>
  <ttl>60</ttl>
  <item>
    <title>First</title>
    <link>http://example.com/first</link>
    <guid isPermaLink="false">abc123</guid>
    <description>First body</description>
    <author>ed@example.com (Ed)</author>
    <category>World</category>
    <pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate>
    <enclosure url="http://example.com/old.jpg" length="1024" type="image/jpeg"/>
  </item>
  <item>
    <title>No GUID</title>
    <link>http://example.com/noguid</link>
    <description>Orphan</description>
    <enclosure url="http://example.com/orphan.mp3" length="2048" type="audio/mpeg"/>
  </item>
  <item>
    <title>Second</title>
    <link>http://example.com/second</link>
    <guid>http://example.com/second</guid>
    <description>Second body</description>
    <content:encoded><![CDATA[<p>Full second</p>]]></content:encoded>
  </item>
</channel>
</rss>`

const atomSource = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <id>urn:example:feed</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <link href="http://example.com/" rel="alternate"/>
  <author><name>Writer</name></author>
  <entry>
    <title>Entry One</title>
    <id>urn:example:entry:1</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <link href="http://example.com/one" rel="alternate"/>
    <link href="http://example.com/one.mp3" rel="enclosure" type="audio/mpeg"/>
    <summary>One summary</summary>
  </entry>
  <entry>
    <title>Entry Two</title>
    <id>urn:example:entry:2</id>
    <updated>2024-01-02T00:00:00Z</updated>
    <link href="http://example.com/two"/>
    <summary>Two summary</summary>
  </entry>
</feed>`

func testOptions() Options {
	return Options{
		ContentBase: "https://pods.example.com/api/content",
		Voice:       "alloy",
		Params: Params{
			FeedURL:   "http://example.com/feed.xml",
			Ignore:    []string{"aside", ".ad"},
			Normalize: true,
		},
	}
}

func TestRewriteRSS(t *testing.T) {
	res, err := NewRewriter(logging.NewNop()).Rewrite([]byte(rssSource), testOptions())
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if !strings.HasPrefix(res.ContentType, "application/rss+xml") {
		t.Fatalf("unexpected content type %q", res.ContentType)
	}
	if res.Rewritten != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected stats rewritten=%d skipped=%d", res.Rewritten, res.Skipped)
	}

	out, err := (&rss.Parser{}).Parse(bytes.NewReader(res.Body))
	if err != nil {
		t.Fatalf("rewritten feed does not parse: %v\n%s", err, res.Body)
	}
	if out.Title != "Example News" || out.Language != "en" || out.TTL != "60" {
		t.Fatalf("channel fields not preserved: %+v", out)
	}
	if len(out.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(out.Items))
	}
	wantTitles := []string{"First", "No GUID", "Second"}
	for i, item := range out.Items {
		if item.Title != wantTitles[i] {
			t.Fatalf("item %d title = %q, want %q", i, item.Title, wantTitles[i])
		}
	}

	first := out.Items[0]
	if first.GUID == nil || first.GUID.Value != "abc123" || first.GUID.IsPermalink != "false" {
		t.Fatalf("guid not preserved: %+v", first.GUID)
	}
	if first.Description != "First body" || first.Author != "ed@example.com (Ed)" || first.Link != "http://example.com/first" {
		t.Fatalf("item fields not preserved: %+v", first)
	}
	if len(first.Categories) != 1 || first.Categories[0].Value != "World" {
		t.Fatalf("category not preserved: %+v", first.Categories)
	}
	if first.PubDate != "Mon, 01 Jan 2024 10:00:00 +0000" {
		t.Fatalf("pubDate not preserved: %q", first.PubDate)
	}
	assertEnclosure(t, first.Enclosure, "abc123")

	orphan := out.Items[1]
	if orphan.Enclosure == nil || orphan.Enclosure.URL != "http://example.com/orphan.mp3" {
		t.Fatalf("expected untouched enclosure on item without guid, got %+v", orphan.Enclosure)
	}

	second := out.Items[2]
	if second.Content != "<p>Full second</p>" {
		t.Fatalf("content:encoded not preserved: %q", second.Content)
	}
	assertEnclosure(t, second.Enclosure, "http://example.com/second")
}

func assertEnclosure(t *testing.T, enc *rss.Enclosure, uid string) {
	t.Helper()
	if enc == nil {
		t.Fatal("expected enclosure")
	}
	if enc.Type != "audio/mpeg" {
		t.Fatalf("unexpected enclosure type %q", enc.Type)
	}
	u, err := url.Parse(enc.URL)
	if err != nil {
		t.Fatalf("enclosure url does not parse: %v", err)
	}
	if u.Host != "pods.example.com" || u.Path != "/api/content/alloy" {
		t.Fatalf("unexpected enclosure target %s", enc.URL)
	}
	q := u.Query()
	if q.Get("uid") != uid {
		t.Fatalf("uid = %q, want %q", q.Get("uid"), uid)
	}
	if q.Get("url") != "http://example.com/feed.xml" {
		t.Fatalf("url = %q", q.Get("url"))
	}
	if q.Get("normalize") != "true" {
		t.Fatalf("normalize = %q", q.Get("normalize"))
	}
	if got := q["ignore"]; len(got) != 2 || got[0] != "aside" || got[1] != ".ad" {
		t.Fatalf("ignore = %v", got)
	}
}

const rssExtensions = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>Extended</title>
  <itunes:image href="http://example.com/cover.png"/>
  <item>
    <title>Tagged</title>
    <guid>tagged-1</guid>
    <category>Go</category>
    <category>Rust</category>
    <dc:creator>Jane Doe</dc:creator>
    <itunes:duration>12:00</itunes:duration>
    <source url="http://example.com/src.xml">Origin</source>
    <enclosure url="http://example.com/a.mp3" length="1" type="audio/mpeg"/>
    <enclosure url="http://example.com/b.mp3" length="2" type="audio/mpeg"></enclosure>
  </item>
</channel>
</rss>`

func TestRewriteRSSKeepsExtensionsAndCategories(t *testing.T) {
	res, err := NewRewriter(logging.NewNop()).Rewrite([]byte(rssExtensions), testOptions())
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	body := string(res.Body)
	for _, want := range []string{
		`<itunes:image href="http://example.com/cover.png"/>`,
		"<category>Go</category>",
		"<category>Rust</category>",
		"<dc:creator>Jane Doe</dc:creator>",
		"<itunes:duration>12:00</itunes:duration>",
		`<source url="http://example.com/src.xml">Origin</source>`,
		"&amp;uid=tagged-1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("rewritten feed lost %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "<link>") {
		t.Fatalf("rewritten feed gained a link element:\n%s", body)
	}
	if strings.Contains(body, "a.mp3") || strings.Contains(body, "b.mp3") {
		t.Fatalf("old enclosures not replaced:\n%s", body)
	}

	out, err := (&rss.Parser{}).Parse(bytes.NewReader(res.Body))
	if err != nil {
		t.Fatalf("rewritten feed does not parse: %v", err)
	}
	item := out.Items[0]
	if len(item.Categories) != 2 {
		t.Fatalf("expected both categories, got %+v", item.Categories)
	}
	if strings.Count(body, "<enclosure") != 1 {
		t.Fatalf("expected exactly one enclosure:\n%s", body)
	}
	assertEnclosure(t, item.Enclosure, "tagged-1")
}

func TestRewriteWithoutGUIDsReturnsDocumentUnchanged(t *testing.T) {
	src := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<!-- kept -->
<item><title>Loose</title><enclosure url="http://example.com/x.mp3" length="5" type="audio/mpeg"/></item>
</channel></rss>`
	res, err := NewRewriter(logging.NewNop()).Rewrite([]byte(src), testOptions())
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if string(res.Body) != src || res.Skipped != 1 || res.Rewritten != 0 {
		t.Fatalf("expected untouched document, skipped=%d:\n%s", res.Skipped, res.Body)
	}
}

func TestRewriteReencodesDeclaredCharset(t *testing.T) {
	src := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<rss version=\"2.0\"><channel><title>Caf\xe9</title>" +
		"<item><title>Cr\xe8me</title><guid>g1</guid></item></channel></rss>")
	res, err := NewRewriter(logging.NewNop()).Rewrite(src, testOptions())
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	body := string(res.Body)
	if !strings.HasPrefix(body, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("declaration not rewritten:\n%s", body)
	}
	if !strings.Contains(body, "Café") || !strings.Contains(body, "Crème") {
		t.Fatalf("text not re-encoded:\n%s", body)
	}
	out, err := (&rss.Parser{}).Parse(bytes.NewReader(res.Body))
	if err != nil {
		t.Fatalf("rewritten feed does not parse: %v", err)
	}
	assertEnclosure(t, out.Items[0].Enclosure, "g1")
}

func TestRewriteRSSStrictGUID(t *testing.T) {
	opts := testOptions()
	opts.RequireGUID = true
	_, err := NewRewriter(logging.NewNop()).Rewrite([]byte(rssSource), opts)
	if !errors.Is(err, ErrMissingGUID) {
		t.Fatalf("expected ErrMissingGUID, got %v", err)
	}
	if !errors.Is(err, services.ErrBadRequest) {
		t.Fatalf("expected bad request marker, got %v", err)
	}
}

func TestRewriteAtom(t *testing.T) {
	res, err := NewRewriter(logging.NewNop()).Rewrite([]byte(atomSource), testOptions())
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if !strings.HasPrefix(res.ContentType, "application/atom+xml") {
		t.Fatalf("unexpected content type %q", res.ContentType)
	}

	if !strings.Contains(string(res.Body), "<author><name>Writer</name></author>") {
		t.Fatalf("feed author not preserved:\n%s", res.Body)
	}
	if strings.Contains(string(res.Body), "one.mp3") {
		t.Fatalf("old enclosure link not replaced:\n%s", res.Body)
	}

	out, err := (&atom.Parser{}).Parse(bytes.NewReader(res.Body))
	if err != nil {
		t.Fatalf("rewritten feed does not parse: %v\n%s", err, res.Body)
	}
	if out.Title != "Atom Example" || out.ID != "urn:example:feed" {
		t.Fatalf("feed fields not preserved: %+v", out)
	}
	if len(out.Entries) != 2 || out.Entries[0].ID != "urn:example:entry:1" || out.Entries[1].ID != "urn:example:entry:2" {
		t.Fatalf("entries not preserved in order")
	}
	for _, entry := range out.Entries {
		var enclosures []*atom.Link
		var alternate bool
		for _, l := range entry.Links {
			switch l.Rel {
			case "enclosure":
				enclosures = append(enclosures, l)
			case "", "alternate":
				alternate = true
			}
		}
		if !alternate {
			t.Fatalf("entry %s lost its alternate link", entry.ID)
		}
		if len(enclosures) != 1 {
			t.Fatalf("entry %s has %d enclosures, want 1", entry.ID, len(enclosures))
		}
		u, _ := url.Parse(enclosures[0].Href)
		if u.Query().Get("uid") != entry.ID || enclosures[0].Type != "audio/mpeg" {
			t.Fatalf("unexpected enclosure %+v", enclosures[0])
		}
	}
}

func TestRewriteRejectsUnknownDocument(t *testing.T) {
	_, err := NewRewriter(logging.NewNop()).Rewrite([]byte("<html><body>nope</body></html>"), testOptions())
	if !errors.Is(err, services.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestContentURLEscapesVoice(t *testing.T) {
	got := ContentURL("http://h/api/content/", "af bella", "id", Params{FeedURL: "http://f", Normalize: false, Selector: "article p"})
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/api/content/af bella" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	if u.Query().Get("normalize") != "false" || u.Query().Get("selector") != "article p" {
		t.Fatalf("unexpected query %q", u.RawQuery)
	}
}

func TestFeedURL(t *testing.T) {
	got := FeedURL("http://h/api/feed", "alloy", Params{FeedURL: "http://example.com/rss", Ignore: []string{"nav"}, Normalize: true})
	want := "http://h/api/feed/alloy?ignore=nav&normalize=true&url=http%3A%2F%2Fexample.com%2Frss"
	if got != want {
		t.Fatalf("FeedURL = %q, want %q", got, want)
	}
}
