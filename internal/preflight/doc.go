// Package preflight provides readiness checks for the directories and the
// speech backend feed2podcast depends on.
//
// The serve command runs RunAll at startup and logs failures without
// refusing to start, since the TTS backend is often brought up alongside
// the service. The CLI "feed2podcast status" command renders the same
// results as a table.
package preflight
