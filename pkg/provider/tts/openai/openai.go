// Package openai provides a TTS provider backed by the OpenAI speech API.
//
// Unlike the Stepfun backend, OpenAI tolerates parallel synthesis requests,
// so the provider reports SupportsConcurrency true and the orchestrator may
// synthesize several sentences at once.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/lunavoice/lunavoice/pkg/provider/tts"
)

const (
	defaultModel  = "gpt-4o-mini-tts"
	defaultVoice  = "alloy"
	defaultFormat = "mp3"
)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	voice   string
	format  string
	speed   float64
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, for compatible
// third-party endpoints.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the speech model. Default "gpt-4o-mini-tts".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice selects the voice. Default "alloy".
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithFormat sets the output audio format. Default "mp3".
func WithFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithSpeed sets the speaking rate (0.25-4.0). Default 1.0.
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
	format string
	speed  float64
	cache  *tts.Cache
}

// New constructs an OpenAI TTS provider writing audio files under cacheDir.
func New(apiKey, cacheDir string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}

	cfg := &config{
		model:  defaultModel,
		voice:  defaultVoice,
		format: defaultFormat,
		speed:  1.0,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	cache, err := tts.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		voice:  cfg.voice,
		format: cfg.format,
		speed:  cfg.speed,
		cache:  cache,
	}, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() string { return p.format }

// SupportsConcurrency implements tts.Provider.
func (p *Provider) SupportsConcurrency() bool { return true }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("openai tts: empty text")
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(p.format),
	}
	if p.speed != 1.0 {
		params.Speed = param.NewOpt(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai tts: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai tts: read audio: %w", err)
	}
	path := p.cache.NewPath(p.format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("openai tts: write audio file: %w", err)
	}
	return path, nil
}

var _ tts.Provider = (*Provider)(nil)
