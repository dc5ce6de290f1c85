package feed

import (
	"encoding/xml"
	"fmt"
)

// RSS 1.0 items live in this namespace; RSS 2.0 items have none.
const rss1Namespace = "http://purl.org/rss/1.0/"

var rssFormat = format{
	name:    "rss",
	isItem:  func(n xml.Name) bool { return n.Local == "item" && (n.Space == "" || n.Space == rss1Namespace) },
	isID:    func(n xml.Name) bool { return n.Local == "guid" && n.Space == "" },
	isTitle: func(n xml.Name) bool { return n.Local == "title" && (n.Space == "" || n.Space == rss1Namespace) },
	isEnclosure: func(t xml.StartElement) bool {
		return t.Name.Local == "enclosure" && t.Name.Space == ""
	},
	enclosure: func(prefix, href string) string {
		return fmt.Sprintf(`<%s url="%s" length="0" type="%s"/>`, qualify(prefix, "enclosure"), escapeAttr(href), enclosureType)
	},
}
