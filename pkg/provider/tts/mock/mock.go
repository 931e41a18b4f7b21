// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to hand controlled audio files to the orchestrator and to
// verify which texts were synthesized, in what order, and with what
// concurrency.
//
// Example:
//
//	p := mock.New(t.TempDir())
//	p.AudioData = wavBytes
//	path, _ := p.Synthesize(ctx, "Hello.")
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lunavoice/lunavoice/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	dir string
	seq int

	// --- Configurable responses ---

	// AudioData is written to the file returned by Synthesize.
	AudioData []byte

	// FormatResult is returned by Format. Default "wav".
	FormatResult string

	// Concurrent is returned by SupportsConcurrency.
	Concurrent bool

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// FailTexts maps exact texts to an error, so individual sentences can
	// be made to fail while others succeed.
	FailTexts map[string]error

	// Block, if non-nil, is received from at the start of every Synthesize
	// call, letting tests control when synthesis completes.
	Block chan struct{}

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// MaxInFlight records the highest number of Synthesize calls observed
	// running at once.
	MaxInFlight int

	inFlight int
}

// New returns a mock Provider writing audio files under dir.
func New(dir string) *Provider {
	return &Provider{dir: dir, FormatResult: "wav"}
}

// Synthesize records the call and writes AudioData to a fresh file.
func (p *Provider) Synthesize(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	p.inFlight++
	if p.inFlight > p.MaxInFlight {
		p.MaxInFlight = p.inFlight
	}
	p.seq++
	seq := p.seq
	block := p.Block
	err := p.SynthesizeErr
	if err == nil && p.FailTexts != nil {
		err = p.FailTexts[text]
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(p.dir, fmt.Sprintf("mock_%04d.%s", seq, p.Format()))
	if werr := os.WriteFile(path, p.AudioData, 0o644); werr != nil {
		return "", werr
	}
	return path, nil
}

// Format returns FormatResult.
func (p *Provider) Format() string {
	if p.FormatResult == "" {
		return "wav"
	}
	return p.FormatResult
}

// SupportsConcurrency returns Concurrent.
func (p *Provider) SupportsConcurrency() bool { return p.Concurrent }

// Texts returns the synthesized texts in call order. Thread-safe.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	texts := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		texts[i] = c.Text
	}
	return texts
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.MaxInFlight = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
