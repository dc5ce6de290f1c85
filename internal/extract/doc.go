// Package extract turns feed items and article pages into plain text ready
// for speech synthesis.
//
// Two shapes are supported. FromFeed locates an item by GUID in a raw RSS or
// Atom document and flattens its description HTML. FromHTML collects the text
// of every element matching a CSS selector in an article page. Both remove the
// trimmed text of elements matching the ignore selectors from the result by
// substring removal, so identical text elsewhere in the article is removed as
// well. FromFeed always ignores style and script elements.
//
// Output is NFC-normalized.
package extract
