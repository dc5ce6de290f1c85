// Package logging builds the slog loggers used by feed2podcast.
//
// It provides a console handler for interactive use and a JSON handler for
// log shippers, plus helpers that tag lines with a component name and the
// request correlation ID carried on a context.
package logging
