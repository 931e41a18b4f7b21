package resilience

import (
	"context"

	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/asr"
)

// ASRFallback implements [asr.Transcriber] with automatic failover across
// multiple recognition backends. Each backend has its own circuit breaker.
type ASRFallback struct {
	group *FallbackGroup[asr.Transcriber]
}

var _ asr.Transcriber = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary asr.Transcriber, primaryName string, cfg FallbackConfig) *ASRFallback {
	if cfg.Kind == "" {
		cfg.Kind = "asr"
	}
	return &ASRFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional transcriber as a fallback.
func (f *ASRFallback) AddFallback(name string, t asr.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe implements asr.Transcriber, trying the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, clip audio.PCM) (string, error) {
	return ExecuteWithResult(f.group, func(t asr.Transcriber) (string, error) {
		return t.Transcribe(ctx, clip)
	})
}
