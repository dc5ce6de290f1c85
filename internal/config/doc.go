// Package config loads, normalizes, and validates feed2podcast configuration.
//
// Values resolve in order: repository defaults, the TOML file, FEED2PODCAST_*
// environment variables, then command-line flags applied by the CLI followed
// by Finalize. Paths are expanded (including "~") so downstream code always
// receives absolute directories.
package config
