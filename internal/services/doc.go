// Package services defines shared plumbing for the feed2podcast components
// and their external integrations.
//
// It holds the error markers every component wraps its failures with, the
// mapping from those markers to HTTP status codes, and context helpers that
// carry request correlation identifiers into log lines.
//
// Wrap failures with Wrap and one of the markers so the HTTP layer can pick
// a status without knowing which component failed.
package services
