// Package stepfun provides a TTS provider backed by the Stepfun speech API.
//
// The API allows a single concurrent request and 6 requests per rolling
// minute, so the provider shares one process-wide [ratelimit.Limiter]
// across all instances and reports SupportsConcurrency false. Requests
// count against the quota whether they succeed or not.
package stepfun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lunavoice/lunavoice/pkg/provider/tts"
	"github.com/lunavoice/lunavoice/pkg/provider/tts/ratelimit"
)

const (
	defaultBaseURL = "https://api.stepfun.com/v1/audio/speech"
	defaultModel   = "step-tts-mini"
	defaultVoice   = "elegantgentle-female"
	defaultFormat  = "mp3"

	requestTimeout = 60 * time.Second

	maxAttempts  = 3
	throttleWait = 12 * time.Second
	timeoutWait  = 2 * time.Second

	rpmLimit  = 6
	rpmWindow = time.Minute
)

// sharedLimiter enforces the account-wide quota. All provider instances in
// the process draw from the same window, matching how the API meters keys.
var sharedLimiter = ratelimit.New(rpmLimit, rpmWindow)

var supportedFormats = map[string]bool{
	"wav": true, "mp3": true, "flac": true, "opus": true, "pcm": true,
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	voice   string
	format  string
	speed   float64
	volume  float64

	limiter *ratelimit.Limiter
	client  *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the synthesis model. Default "step-tts-mini".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice selects the voice timbre. Default "elegantgentle-female".
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithFormat sets the output audio format. Supported: wav, mp3, flac,
// opus, pcm. Unsupported values fall back to mp3 with a warning.
func WithFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithSpeed sets the speaking rate, clamped to 0.5-2.0. Default 1.0.
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// WithVolume sets the output volume, clamped to 0.1-2.0. Default 1.0.
func WithVolume(volume float64) Option {
	return func(c *config) { c.volume = volume }
}

// WithLimiter replaces the shared process-wide rate limiter, for tests.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *config) { c.limiter = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.client = client }
}

// WithSleep replaces the retry wait function, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *config) { c.sleep = sleep }
}

// Provider implements tts.Provider using the Stepfun speech API.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	format  string
	speed   float64
	volume  float64

	cache   *tts.Cache
	limiter *ratelimit.Limiter
	client  *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

// New constructs a Stepfun TTS provider writing audio files under cacheDir.
func New(apiKey, cacheDir string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stepfun: apiKey must not be empty")
	}

	cfg := &config{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		voice:   defaultVoice,
		format:  defaultFormat,
		speed:   1.0,
		volume:  1.0,
		limiter: sharedLimiter,
		client:  &http.Client{Timeout: requestTimeout},
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(cfg)
	}

	if !supportedFormats[cfg.format] {
		slog.Warn("unsupported audio format, falling back to mp3", "format", cfg.format)
		cfg.format = defaultFormat
	}

	cache, err := tts.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}

	return &Provider{
		apiKey:  apiKey,
		baseURL: cfg.baseURL,
		model:   cfg.model,
		voice:   cfg.voice,
		format:  cfg.format,
		speed:   clamp(cfg.speed, 0.5, 2.0),
		volume:  clamp(cfg.volume, 0.1, 2.0),
		cache:   cache,
		limiter: cfg.limiter,
		client:  cfg.client,
		sleep:   cfg.sleep,
	}, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() string { return p.format }

// SupportsConcurrency implements tts.Provider. The API rejects parallel
// requests, so the orchestrator must serialize calls.
func (p *Provider) SupportsConcurrency() bool { return false }

// speechRequest is the JSON request body. Optional fields are omitted at
// their defaults.
type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	Volume         float64 `json:"volume,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize implements tts.Provider. Throttled requests retry after a
// fixed wait; timeouts retry with a short backoff; other API errors fail
// immediately.
func (p *Provider) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("stepfun: empty text")
	}

	body := speechRequest{
		Model: p.model,
		Input: text,
		Voice: p.voice,
	}
	if p.speed != 1.0 {
		body.Speed = p.speed
	}
	if p.volume != 1.0 {
		body.Volume = p.volume
	}
	if p.format != defaultFormat {
		body.ResponseFormat = p.format
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("stepfun: marshal request: %w", err)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		path, retryWait, err := p.dispatch(ctx, payload)
		if err == nil {
			return path, nil
		}
		if retryWait <= 0 || attempt == maxAttempts {
			return "", err
		}
		slog.Warn("synthesis attempt failed, retrying",
			"attempt", attempt, "wait", retryWait, "error", err)
		if serr := p.sleep(ctx, retryWait); serr != nil {
			return "", serr
		}
	}
	return "", fmt.Errorf("stepfun: retries exhausted")
}

// dispatch performs one rate-limited API call. A positive retryWait marks
// the error as retryable after that long.
func (p *Provider) dispatch(ctx context.Context, payload []byte) (path string, retryWait time.Duration, err error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return "", 0, err
	}
	defer p.limiter.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("stepfun: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", timeoutWait, fmt.Errorf("stepfun: request timed out: %w", err)
		}
		return "", 0, fmt.Errorf("stepfun: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		path, err := p.saveAudio(resp.Body)
		return path, 0, err

	case resp.StatusCode == http.StatusTooManyRequests:
		return "", throttleWait, fmt.Errorf("stepfun: throttled: %s", errorMessage(resp.Body))

	default:
		return "", 0, fmt.Errorf("stepfun: status %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
}

func (p *Provider) saveAudio(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("stepfun: read audio: %w", err)
	}
	path := p.cache.NewPath(p.format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("stepfun: write audio file: %w", err)
	}
	return path, nil
}

func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return string(data)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ tts.Provider = (*Provider)(nil)
