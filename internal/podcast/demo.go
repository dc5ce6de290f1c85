package podcast

import (
	"context"
	"time"

	"feed2podcast/internal/cachekey"
	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
	"feed2podcast/internal/services/tts"
)

// DemoPhrase is spoken by every voice sample.
const DemoPhrase = "The quick brown fox jumps over the lazy dog."

// Demo returns a short sample of voice. Samples live under the demo subtree,
// which the janitor never touches, so no sweep is scheduled.
func (c *Cache) Demo(ctx context.Context, voice string) ([]byte, bool, error) {
	path, err := cachekey.DemoPath(c.root, c.tts.Model(), voice)
	if err != nil {
		return nil, false, err
	}
	if data, ok, err := readCached(path); err != nil || ok {
		return data, false, err
	}
	ctx = services.WithEpisode(ctx, services.Episode{Voice: voice})

	res, err := c.gate.run(ctx, path, func(work context.Context) (result, error) {
		if data, ok, err := readCached(path); err != nil || ok {
			return result{audio: data}, err
		}
		start := time.Now()
		audio, err := c.tts.Synthesize(work, tts.SpeechRequest{Input: DemoPhrase, Voice: voice})
		if err != nil {
			return result{}, err
		}
		if err := c.publish(path, audio); err != nil {
			return result{}, err
		}
		logging.WithContext(work, c.logger).Info("voice demo generated",
			logging.Duration("elapsed", time.Since(start)),
		)
		return result{audio: audio, generated: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.audio, res.generated, nil
}

// Voices lists the voices clients may request.
func (c *Cache) Voices(ctx context.Context) ([]string, error) {
	if len(c.voices) > 0 {
		return append([]string(nil), c.voices...), nil
	}
	return c.tts.ListVoices(ctx)
}
