// Package elevenlabs provides a TTS provider backed by the ElevenLabs
// streaming WebSocket API. Each synthesis call opens a stream-input socket,
// sends the text, collects the PCM chunks the API returns and writes them
// to the audio cache as one WAV file.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/tts"
)

const (
	wsEndpointFmt = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"

	defaultModel     = "eleven_flash_v2_5"
	defaultVoice     = "21m00Tcm4TlvDq8ikWAM"
	defaultOutputFmt = "pcm_16000"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithVoice sets the ElevenLabs voice ID.
func WithVoice(voiceID string) Option {
	return func(p *Provider) { p.voiceID = voiceID }
}

// WithOutputFormat sets the audio output format. Only raw PCM formats
// ("pcm_16000", "pcm_24000", ...) are supported; the trailing number is the
// sample rate of the stream.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithEndpoint overrides the stream-input endpoint format string, for tests.
// It must contain two %s verbs: voice ID and model ID.
func WithEndpoint(endpointFmt string) Option {
	return func(p *Provider) { p.endpointFmt = endpointFmt }
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
// It is safe for concurrent use; each Synthesize call owns its own socket.
type Provider struct {
	apiKey       string
	model        string
	voiceID      string
	outputFormat string
	endpointFmt  string
	cache        *tts.Cache
}

// New creates an ElevenLabs Provider writing audio files under cacheDir.
// apiKey must be non-empty.
func New(apiKey, cacheDir string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	cache, err := tts.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		voiceID:      defaultVoice,
		outputFormat: defaultOutputFmt,
		endpointFmt:  wsEndpointFmt,
		cache:        cache,
	}
	for _, o := range opts {
		o(p)
	}
	if _, err := pcmSampleRate(p.outputFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// Format implements tts.Provider. The PCM stream is wrapped in a WAV
// container before it reaches the cache.
func (p *Provider) Format() string { return "wav" }

// SupportsConcurrency implements tts.Provider. Each call uses its own
// socket and the API allows parallel streams.
func (p *Provider) SupportsConcurrency() bool { return true }

// boiMessage is the initial "begin of input" handshake that authenticates
// and configures the stream.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// textMessage is the JSON payload sent for each text fragment. An empty
// Text flushes the stream and ends input.
type textMessage struct {
	Text string `json:"text"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is a JSON message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize implements tts.Provider. It opens a stream-input socket, sends
// text plus a flush, drains the audio messages and writes the collected PCM
// to a new WAV file in the cache.
func (p *Provider) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errors.New("elevenlabs: empty text")
	}
	rate, err := pcmSampleRate(p.outputFormat)
	if err != nil {
		return "", err
	}

	wsURL := fmt.Sprintf(p.endpointFmt, p.voiceID, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The API requires a non-empty first text value.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      p.apiKey,
		OutputFormat:  p.outputFormat,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return "", fmt.Errorf("elevenlabs: send BOI: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: text + " "}); err != nil {
		return "", fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text flushes the stream.
	if err := writeJSON(ctx, conn, textMessage{}); err != nil {
		return "", fmt.Errorf("elevenlabs: flush: %w", err)
	}

	pcm, err := drainAudio(ctx, conn)
	if err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", errors.New("elevenlabs: stream produced no audio")
	}

	wav := audio.EncodeWAV(audio.PCM{
		Samples:    bytesToSamples(pcm),
		SampleRate: rate,
		Channels:   1,
	})
	path := p.cache.NewPath(p.Format())
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("elevenlabs: write audio file: %w", err)
	}
	return path, nil
}

// drainAudio reads audio messages until the final marker or socket close
// and returns the concatenated raw PCM.
func drainAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// A normal close after the flush means the stream is done.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return pcm, nil
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			return pcm, nil
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// pcmSampleRate extracts the sample rate from a "pcm_NNNNN" output format.
func pcmSampleRate(format string) (int, error) {
	digits, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q", format)
	}
	rate, err := strconv.Atoi(digits)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q", format)
	}
	return rate, nil
}

// bytesToSamples converts little-endian int16 PCM bytes to samples. A
// trailing odd byte is dropped.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

var _ tts.Provider = (*Provider)(nil)
