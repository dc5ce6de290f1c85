package feed

import (
	"net/url"
	"strconv"
	"strings"
)

// Params are the query parameters shared by the feed and content endpoints.
type Params struct {
	FeedURL   string
	Ignore    []string
	Normalize bool
	// Selector switches content extraction to the linked article page.
	Selector string
}

func (p Params) values() url.Values {
	v := url.Values{}
	v.Set("url", p.FeedURL)
	for _, ig := range p.Ignore {
		v.Add("ignore", ig)
	}
	v.Set("normalize", strconv.FormatBool(p.Normalize))
	if p.Selector != "" {
		v.Set("selector", p.Selector)
	}
	return v
}

// ContentURL returns <contentBase>/<voice>?url&uid&ignore&normalize[&selector].
func ContentURL(contentBase, voice, uid string, p Params) string {
	v := p.values()
	v.Set("uid", uid)
	return joinVoice(contentBase, voice) + "?" + v.Encode()
}

// FeedURL returns <feedBase>/<voice>?url&ignore&normalize[&selector].
func FeedURL(feedBase, voice string, p Params) string {
	return joinVoice(feedBase, voice) + "?" + p.values().Encode()
}

func joinVoice(base, voice string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(voice)
}
