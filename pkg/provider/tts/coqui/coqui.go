// Package coqui provides a TTS provider backed by a locally running Coqui
// TTS server. Two server APIs are supported:
//
//   - APIModeStandard (default): the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis goes through GET /api/tts with
//     URL query parameters.
//
//   - APIModeXTTS: the Coqui XTTS v2 API server. Synthesis goes through
//     POST /tts_to_audio/ with a JSON body; the speaker is a reference WAV
//     known to the server.
//
// Both servers return a complete WAV per request, which is written to the
// audio cache as-is. A local server has no request quota, so the provider
// reports SupportsConcurrency true and sentences synthesize in parallel.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lunavoice/lunavoice/pkg/provider/tts"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	apiTTSEndpoint = "/api/tts"
	xttsEndpoint   = "/tts_to_audio/"
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"

	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSpeaker sets the speaker identifier: a speaker_id for the standard
// server, or a speaker reference WAV name for XTTS. Single-speaker standard
// models work without one.
func WithSpeaker(speaker string) Option {
	return func(p *Provider) { p.speaker = speaker }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for
// the standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API
// server.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.apiMode = mode }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// Provider implements tts.Provider backed by a Coqui TTS server. It is safe
// for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	speaker    string
	apiMode    APIMode
	cache      *tts.Cache
	httpClient *http.Client
}

// New creates a Coqui Provider that targets the TTS server at serverURL
// (e.g., "http://localhost:5002") and writes audio files under cacheDir.
func New(serverURL, cacheDir string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	cache, err := tts.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		cache:      cache,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Format implements tts.Provider. Coqui servers return WAV.
func (p *Provider) Format() string { return "wav" }

// SupportsConcurrency implements tts.Provider. A local server has no
// per-key quota.
func (p *Provider) SupportsConcurrency() bool { return true }

// xttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize implements tts.Provider. It performs one HTTP request and
// writes the WAV response to a new cache file.
func (p *Provider) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errors.New("coqui: empty text")
	}

	var (
		wav []byte
		err error
	)
	if p.apiMode == APIModeXTTS {
		wav, err = p.synthesizeXTTS(ctx, text)
	} else {
		wav, err = p.synthesizeStandard(ctx, text)
	}
	if err != nil {
		return "", err
	}

	path := p.cache.NewPath(p.Format())
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("coqui: write audio file: %w", err)
	}
	return path, nil
}

// synthesizeStandard performs a single GET /api/tts request using URL query
// parameters and returns the WAV response body.
func (p *Provider) synthesizeStandard(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")
	return p.do(req, apiTTSEndpoint)
}

// synthesizeXTTS performs a single POST /tts_to_audio/ call (XTTS v2 mode)
// and returns the WAV response body. XTTS always requires a speaker.
func (p *Provider) synthesizeXTTS(ctx context.Context, text string) ([]byte, error) {
	if p.speaker == "" {
		return nil, errors.New("coqui: speaker is required in XTTS mode")
	}
	data, err := json.Marshal(xttsRequest{
		Text:       text,
		SpeakerWav: p.speaker,
		Language:   p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+xttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	return p.do(req, xttsEndpoint)
}

func (p *Provider) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, endpoint, resp.StatusCode)
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

var _ tts.Provider = (*Provider)(nil)
