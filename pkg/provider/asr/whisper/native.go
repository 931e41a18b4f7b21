// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/asr"
)

// Compile-time assertion that NativeProvider implements asr.Transcriber.
var _ asr.Transcriber = (*NativeProvider)(nil)

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "zh",
// "en"). Defaults to "zh".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NativeProvider implements asr.Transcriber using the whisper.cpp Go
// bindings, eliminating HTTP overhead entirely. The model is loaded once
// at startup and shared across all transcriptions.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	// Contexts created from a shared model are not individually
	// thread-safe; serialize inference.
	mu sync.Mutex
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements asr.Transcriber.
func (p *NativeProvider) Transcribe(ctx context.Context, clip audio.PCM) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(clip.Samples) == 0 {
		return "", nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("failed to set whisper language, using default",
			"language", p.language, "error", err)
	}

	if err := wctx.Process(toFloat32Mono(clip), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// toFloat32Mono converts interleaved 16-bit PCM to the float32 mono
// samples whisper.cpp expects, averaging channels.
func toFloat32Mono(clip audio.PCM) []float32 {
	ch := clip.Channels
	if ch <= 0 {
		ch = 1
	}
	frames := len(clip.Samples) / ch
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum int
		for c := 0; c < ch; c++ {
			sum += int(clip.Samples[f*ch+c])
		}
		out[f] = float32(sum/ch) / 32768.0
	}
	return out
}
