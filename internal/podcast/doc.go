// Package podcast renders feed items to audio and keeps the results on disk.
//
// Cache hits are served straight from the filesystem. Misses pass through a
// process-wide generation gate: a weighted semaphore bounds how many
// syntheses run at once and a singleflight group collapses concurrent
// requests for the same cache path into one. Finished audio is published
// with an atomic rename, after which the janitor is scheduled.
package podcast
