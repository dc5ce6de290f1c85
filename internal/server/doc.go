// Package server exposes feed2podcast over HTTP.
//
// Routes:
//
//	GET /api/feed/{voice}        rewritten podcast feed
//	GET /api/feed/build/{voice}  plain-text feed URL for the given parameters
//	GET /api/content/{voice}     episode audio, generated on first request
//	GET /api/demo/               JSON array of voice names
//	GET /api/demo/{voice}        voice sample audio
//	GET /                        web UI feed builder
//	GET /demo                    web UI voice samples
//	GET /static/                 files from the shared directory
//	GET /docs                    OpenAPI document
//
// Every response carries an X-Request-ID header. Errors are JSON objects of
// the form {"error": "..."} with a status derived from the error's marker.
package server
