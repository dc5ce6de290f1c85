// Package main hosts the feed2podcast CLI entrypoint and command graph.
//
// `serve` runs the HTTP service. The remaining commands inspect and maintain
// the audio cache, list TTS voices, check readiness and scaffold
// configuration. Wiring lives in app.go so every command builds the same
// components from the same config.
package main
