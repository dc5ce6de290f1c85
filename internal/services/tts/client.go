package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feed2podcast/internal/services"
)

const (
	defaultHTTPTimeout = 300 * time.Second
	maxErrorBodyBytes  = 4 << 10
)

// Config captures the runtime settings required to talk to the TTS backend.
type Config struct {
	BaseURL        string
	Model          string
	APIKey         string
	TimeoutSeconds int
}

// Client talks to an OpenAI-compatible speech backend such as Kokoro-FastAPI.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a TTS client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured synthesis model.
func (c *Client) Model() string {
	return c.cfg.Model
}

// SpeechRequest describes one synthesis call.
type SpeechRequest struct {
	Input string
	Voice string
	// Normalize is omitted from the payload when nil.
	Normalize *bool
}

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, body)
}

type speechPayload struct {
	Input                string                `json:"input"`
	Model                string                `json:"model"`
	Voice                string                `json:"voice"`
	NormalizationOptions *normalizationOptions `json:"normalization_options,omitempty"`
}

type normalizationOptions struct {
	Normalize bool `json:"normalize"`
}

// Synthesize renders req.Input with the configured model and returns the raw
// audio bytes. Failures are never retried.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Voice) == "" {
		return nil, services.Wrap(services.ErrBadRequest, "tts", "synthesize", "voice required", nil)
	}
	payload := speechPayload{
		Input: req.Input,
		Model: c.cfg.Model,
		Voice: req.Voice,
	}
	if req.Normalize != nil {
		payload.NormalizationOptions = &normalizationOptions{Normalize: *req.Normalize}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrInternalIO, "tts", "synthesize", "encode body", err)
	}
	body, err := c.do(ctx, http.MethodPost, "audio/speech", bytes.NewReader(encoded), "synthesize")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, services.Wrap(services.ErrUpstream, "tts", "synthesize", "empty audio response", nil)
	}
	return body, nil
}

// ListVoices queries the backend for its available voice names.
func (c *Client) ListVoices(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "audio/voices", nil, "list voices")
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Voices []string `json:"voices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "tts", "list voices", "decode response", err)
	}
	voices := make([]string, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		if v = strings.TrimSpace(v); v != "" {
			voices = append(voices, v)
		}
	}
	return voices, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload io.Reader, op string) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrUpstream, "tts", op, "base url not configured", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "tts", op, "build url", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "tts", op, "new request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, services.Wrap(services.ErrUnavailable, "tts", op, "request canceled", err)
		}
		return nil, services.Wrap(services.ErrUpstream, "tts", op, fmt.Sprintf("http error (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := &StatusError{Op: "tts " + op, StatusCode: resp.StatusCode, Body: string(snippet)}
		return nil, services.Wrap(services.ErrUpstream, "tts", op, "", statusErr)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "tts", op, "read body", err)
	}
	return body, nil
}
