// Package tts provides a client for OpenAI-compatible speech backends.
//
// Synthesize posts {input, model, voice, normalization_options} to
// {base}/audio/speech and returns the raw audio. ListVoices reads
// {"voices": [...]} from {base}/audio/voices. Non-2xx responses surface as
// *StatusError wrapped with services.ErrUpstream. Nothing is retried.
package tts
