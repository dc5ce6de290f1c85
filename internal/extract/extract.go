package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"

	"feed2podcast/internal/services"
)

var (
	// ErrNotFound reports a feed without an item matching the requested GUID.
	ErrNotFound = errors.New("item not found")
	// ErrNoContent reports an item or page without extractable text.
	ErrNoContent = errors.New("no content")
	// ErrInvalidSelector reports CSS selector syntax errors.
	ErrInvalidSelector = errors.New("invalid selector")
)

var implicitIgnores = []string{"style", "script"}

// FindItem parses a raw feed document and returns the item whose GUID equals
// uid.
func FindItem(feedBody []byte, uid string) (*gofeed.Item, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(feedBody))
	if err != nil {
		return nil, services.Wrap(services.ErrBadRequest, "extract", "parse feed", "", err)
	}
	for _, item := range parsed.Items {
		if item != nil && item.GUID == uid {
			return item, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "extract", "find item", fmt.Sprintf("guid %q", uid), ErrNotFound)
}

// FromFeed returns the text of the item identified by uid in feedBody.
func FromFeed(feedBody []byte, uid string, ignore []string) (string, error) {
	item, err := FindItem(feedBody, uid)
	if err != nil {
		return "", err
	}
	return ItemText(item, ignore)
}

// ItemText flattens the item's description HTML. Items carrying only
// content:encoded fall back to it.
func ItemText(item *gofeed.Item, ignore []string) (string, error) {
	article := item.Description
	if strings.TrimSpace(article) == "" {
		article = item.Content
	}
	if strings.TrimSpace(article) == "" {
		return "", services.Wrap(services.ErrBadRequest, "extract", "item text", fmt.Sprintf("guid %q", item.GUID), ErrNoContent)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article))
	if err != nil {
		return "", services.Wrap(services.ErrBadRequest, "extract", "parse description", "", err)
	}

	selectors := make([]string, 0, len(ignore)+len(implicitIgnores))
	selectors = append(selectors, ignore...)
	selectors = append(selectors, implicitIgnores...)

	text, err := removeIgnored(doc, doc.Text(), selectors)
	if err != nil {
		return "", err
	}
	return finish(text, "item text")
}

// FromHTML joins, one per line, the non-empty text of every element in page
// matching selector.
func FromHTML(page []byte, selector string, ignore []string) (string, error) {
	body, err := compile(selector)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", services.Wrap(services.ErrBadRequest, "extract", "parse page", "", err)
	}

	var parts []string
	doc.FindMatcher(body).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	text, err := removeIgnored(doc, strings.Join(parts, "\n"), ignore)
	if err != nil {
		return "", err
	}
	return finish(text, "page text")
}

// ValidateSelectors reports the first selector that does not compile.
func ValidateSelectors(selectors ...string) error {
	for _, sel := range selectors {
		if _, err := compile(sel); err != nil {
			return err
		}
	}
	return nil
}

func removeIgnored(doc *goquery.Document, text string, selectors []string) (string, error) {
	for _, raw := range selectors {
		matcher, err := compile(raw)
		if err != nil {
			return "", err
		}
		doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
			if ignored := strings.TrimSpace(s.Text()); ignored != "" {
				text = strings.ReplaceAll(text, ignored, "")
			}
		})
	}
	return text, nil
}

func compile(selector string) (cascadia.Selector, error) {
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, services.Wrap(services.ErrBadRequest, "extract", "compile selector", fmt.Sprintf("%q: %v", selector, err), ErrInvalidSelector)
	}
	return compiled, nil
}

func finish(text, op string) (string, error) {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return "", services.Wrap(services.ErrBadRequest, "extract", op, "nothing left after extraction", ErrNoContent)
	}
	return text, nil
}
