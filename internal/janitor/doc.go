// Package janitor enforces the cache retention policy.
//
// A sweep walks the cache root and removes the oldest audio files until the
// configured size bound is met, or removes every file older than the
// configured age bound. The demo subtree is never considered for removal and
// its size never counts as reclaimable space. Sweeps hold no lock: cache
// entries are immutable once published, so deleting one concurrently with a
// read is harmless.
package janitor
