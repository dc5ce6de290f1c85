package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	atomNamespace   = "http://www.w3.org/2005/Atom"
	atom03Namespace = "http://purl.org/atom/ns#"
)

func inAtom(n xml.Name) bool {
	return n.Space == atomNamespace || n.Space == atom03Namespace || n.Space == ""
}

var atomFormat = format{
	name:    "atom",
	isItem:  func(n xml.Name) bool { return n.Local == "entry" && inAtom(n) },
	isID:    func(n xml.Name) bool { return n.Local == "id" && inAtom(n) },
	isTitle: func(n xml.Name) bool { return n.Local == "title" && inAtom(n) },
	isEnclosure: func(t xml.StartElement) bool {
		if t.Name.Local != "link" || !inAtom(t.Name) {
			return false
		}
		for _, a := range t.Attr {
			if a.Name.Local == "rel" && a.Name.Space == "" {
				return strings.TrimSpace(a.Value) == "enclosure"
			}
		}
		return false
	},
	enclosure: func(prefix, href string) string {
		return fmt.Sprintf(`<%s rel="enclosure" type="%s" href="%s"/>`, qualify(prefix, "link"), enclosureType, escapeAttr(href))
	},
}
