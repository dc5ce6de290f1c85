// Package feed rewrites origin RSS and Atom feeds into podcast feeds.
//
// Every item keeps its fields but gets a single audio/mpeg enclosure pointing
// at the content endpoint, with the origin feed URL, the item GUID, the ignore
// selectors and the normalize flag carried as query parameters. Output keeps
// the source format and item order. Items without a GUID are passed through
// untouched unless Options.RequireGUID is set.
package feed
