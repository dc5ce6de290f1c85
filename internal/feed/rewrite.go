package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/encoding/htmlindex"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

// ErrMissingGUID reports an item without a GUID under Options.RequireGUID.
var ErrMissingGUID = errors.New("item has no guid")

const (
	enclosureType = "audio/mpeg"
	utf8Decl      = `<?xml version="1.0" encoding="UTF-8"?>`
)

// Options controls a rewrite.
type Options struct {
	// ContentBase is the content endpoint prefix, e.g. https://host/api/content.
	ContentBase string
	Voice       string
	Params      Params
	RequireGUID bool
}

// Result is a rewritten feed document.
type Result struct {
	Body        []byte
	ContentType string
	Rewritten   int
	Skipped     int
}

// Rewriter turns origin feeds into podcast feeds.
type Rewriter struct {
	logger *slog.Logger
}

// NewRewriter constructs a Rewriter.
func NewRewriter(logger *slog.Logger) *Rewriter {
	return &Rewriter{logger: logging.NewComponentLogger(logger, "feed")}
}

// Rewrite returns body with the enclosure of every item that has a GUID
// pointing at the content endpoint. All other bytes of the document are
// copied through unchanged, so extensions, categories and channel metadata
// survive as published. Documents declared in a non-UTF-8 encoding are
// re-encoded as UTF-8.
func (r *Rewriter) Rewrite(body []byte, opts Options) (Result, error) {
	if opts.Voice == "" {
		return Result{}, services.Wrap(services.ErrBadRequest, "feed", "rewrite", "voice required", nil)
	}
	var (
		f     format
		ctype string
	)
	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeRSS:
		f, ctype = rssFormat, "application/rss+xml; charset=utf-8"
	case gofeed.FeedTypeAtom:
		f, ctype = atomFormat, "application/atom+xml; charset=utf-8"
	default:
		return Result{}, services.Wrap(services.ErrBadRequest, "feed", "detect type", "document is neither RSS nor Atom", nil)
	}

	body, transcoded, err := toUTF8(body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrBadRequest, "feed", "decode", "", err)
	}
	edits, stats, err := r.scan(body, f, transcoded, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Body: splice(body, edits), ContentType: ctype, Rewritten: stats.rewritten, Skipped: stats.skipped}, nil
}

// format describes where a feed dialect keeps its items, identifiers and
// enclosures.
type format struct {
	name        string
	isItem      func(xml.Name) bool
	isID        func(xml.Name) bool
	isTitle     func(xml.Name) bool
	isEnclosure func(xml.StartElement) bool
	// enclosure renders the replacement element. prefix is the namespace
	// prefix used on the item tag, if any.
	enclosure func(prefix, href string) string
}

type rewriteStats struct {
	rewritten int
	skipped   int
}

// edit replaces body[start:end] with text.
type edit struct {
	start, end int64
	text       string
}

type span struct{ start, end int64 }

type itemState struct {
	depth      int
	prefix     string
	end        int64
	id         strings.Builder
	title      strings.Builder
	field      *strings.Builder
	enclosures []span
	inEnc      bool
}

// scan walks the document once and records the byte ranges to replace.
func (r *Rewriter) scan(body []byte, f format, transcoded bool, opts Options) ([]edit, rewriteStats, error) {
	var (
		stats rewriteStats
		edits []edit
		cur   *itemState
		depth int
		index int
	)
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = passthroughCharset

	for {
		pos := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, services.Wrap(services.ErrBadRequest, "feed", "parse "+f.name, "", err)
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if transcoded && t.Target == "xml" {
				edits = append(edits, edit{start: pos, end: dec.InputOffset(), text: utf8Decl})
			}
		case xml.StartElement:
			depth++
			if cur == nil {
				if f.isItem(t.Name) {
					cur = &itemState{depth: depth, prefix: tagPrefix(body[pos:])}
				}
				continue
			}
			if depth != cur.depth+1 {
				continue
			}
			switch {
			case f.isEnclosure(t):
				cur.enclosures = append(cur.enclosures, span{start: pos})
				cur.inEnc = true
			case f.isID(t.Name):
				cur.field = &cur.id
			case f.isTitle(t.Name):
				cur.field = &cur.title
			}
		case xml.CharData:
			if cur != nil && cur.field != nil {
				cur.field.Write(t)
			}
		case xml.EndElement:
			if cur != nil {
				switch depth {
				case cur.depth + 1:
					if cur.inEnc {
						cur.enclosures[len(cur.enclosures)-1].end = dec.InputOffset()
						cur.inEnc = false
					}
					cur.field = nil
				case cur.depth:
					cur.end = pos
					itemEdits, err := r.finishItem(cur, f, index, opts, &stats)
					if err != nil {
						return nil, stats, err
					}
					edits = append(edits, itemEdits...)
					index++
					cur = nil
				}
			}
			depth--
		}
	}
	return edits, stats, nil
}

// finishItem points one item's enclosure at the content endpoint. The first
// existing enclosure is replaced in place and any others are dropped; an item
// without one gets the new enclosure appended before its closing tag.
func (r *Rewriter) finishItem(item *itemState, f format, index int, opts Options, stats *rewriteStats) ([]edit, error) {
	guid := strings.TrimSpace(item.id.String())
	if guid == "" {
		if err := r.missingGUID(opts, strings.TrimSpace(item.title.String()), index); err != nil {
			return nil, err
		}
		stats.skipped++
		return nil, nil
	}
	stats.rewritten++

	tag := f.enclosure(item.prefix, ContentURL(opts.ContentBase, opts.Voice, guid, opts.Params))
	if len(item.enclosures) == 0 {
		return []edit{{start: item.end, end: item.end, text: tag}}, nil
	}
	edits := make([]edit, 0, len(item.enclosures))
	for i, enc := range item.enclosures {
		text := ""
		if i == 0 {
			text = tag
		}
		edits = append(edits, edit{start: enc.start, end: enc.end, text: text})
	}
	return edits, nil
}

// missingGUID applies the GUID policy to one item. It returns an error under
// the strict policy and otherwise logs and reports the item as skipped.
func (r *Rewriter) missingGUID(opts Options, title string, index int) error {
	if opts.RequireGUID {
		return services.Wrap(services.ErrBadRequest, "feed", "rewrite", fmt.Sprintf("item %d %q", index, title), ErrMissingGUID)
	}
	logging.WarnWithContext(r.logger, "feed item has no guid; enclosure left unchanged", "feed_item_skipped",
		logging.String(logging.FieldURL, opts.Params.FeedURL),
		logging.Int("item_index", index),
		logging.String("item_title", title),
		logging.String(logging.FieldErrorHint, "ask the publisher to add guid elements"),
		logging.String(logging.FieldImpact, "item cannot be rendered to audio"),
	)
	return nil
}

// splice applies edits, which must be ordered and non-overlapping.
func splice(body []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return body
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + len(edits)*256)
	var last int64
	for _, e := range edits {
		buf.Write(body[last:e.start])
		buf.WriteString(e.text)
		last = e.end
	}
	buf.Write(body[last:])
	return buf.Bytes()
}

// tagPrefix returns the namespace prefix of the start tag at the head of raw.
func tagPrefix(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("<"))
	end := bytes.IndexAny(raw, " \t\r\n/>")
	if end < 0 {
		return ""
	}
	name := raw[:end]
	if i := bytes.IndexByte(name, ':'); i > 0 {
		return string(name[:i])
	}
	return ""
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func escapeAttr(value string) string {
	var buf strings.Builder
	_ = xml.EscapeText(&buf, []byte(value))
	return buf.String()
}

// toUTF8 re-encodes body when its XML declaration names another charset.
func toUTF8(body []byte) ([]byte, bool, error) {
	label := declaredEncoding(body)
	switch strings.ToLower(label) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return body, false, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, false, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", label, err)
	}
	return out, true, nil
}

// passthroughCharset leaves input bytes alone; toUTF8 has already decoded
// them when needed.
func passthroughCharset(_ string, in io.Reader) (io.Reader, error) { return in, nil }

func declaredEncoding(body []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = passthroughCharset
	tok, err := dec.RawToken()
	if err != nil {
		return ""
	}
	inst, ok := tok.(xml.ProcInst)
	if !ok || inst.Target != "xml" {
		return ""
	}
	s := string(inst.Inst)
	i := strings.Index(s, "encoding")
	if i < 0 {
		return ""
	}
	s = strings.TrimLeft(s[i+len("encoding"):], " \t\r\n")
	if !strings.HasPrefix(s, "=") {
		return ""
	}
	s = strings.TrimLeft(s[1:], " \t\r\n")
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return ""
	}
	quote := s[0]
	s = s[1:]
	if j := strings.IndexByte(s, quote); j >= 0 {
		return strings.TrimSpace(s[:j])
	}
	return ""
}
