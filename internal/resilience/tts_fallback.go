package resilience

import (
	"context"
	"fmt"

	"github.com/lunavoice/lunavoice/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker, so
// a provider that keeps timing out or running into its quota is bypassed
// until it recovers.
type TTSFallback struct {
	group  *FallbackGroup[tts.Provider]
	format string
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{
		group:  NewFallbackGroup(primary, primaryName, cfg),
		format: primary.Format(),
	}
}

// AddFallback registers an additional TTS provider. All providers in the
// group must produce the same audio format: the orchestrator decodes files
// by the format the group reports, regardless of which backend produced
// them.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) error {
	if provider.Format() != f.format {
		return fmt.Errorf("resilience: fallback %q produces %s audio, primary produces %s",
			name, provider.Format(), f.format)
	}
	f.group.AddFallback(name, provider)
	return nil
}

// Synthesize implements tts.Provider, trying the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (string, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (string, error) {
		return p.Synthesize(ctx, text)
	})
}

// Format implements tts.Provider.
func (f *TTSFallback) Format() string { return f.format }

// SupportsConcurrency implements tts.Provider. The group serializes when
// any backend requires it, so a failover never lands parallel requests on a
// concurrency-1 provider.
func (f *TTSFallback) SupportsConcurrency() bool {
	for i := range f.group.entries {
		if !f.group.entries[i].value.SupportsConcurrency() {
			return false
		}
	}
	return true
}
