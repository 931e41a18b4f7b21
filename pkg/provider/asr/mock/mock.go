// Package mock provides a test double for the asr.Transcriber interface.
package mock

import (
	"context"
	"sync"

	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Clip is the PCM clip passed to Transcribe.
	Clip audio.PCM
}

// Transcriber is a mock implementation of asr.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by every Transcribe call.
	Result string

	// Results, when non-empty, is consumed one element per call before
	// falling back to Result.
	Results []string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (m *Transcriber) Transcribe(ctx context.Context, clip audio.PCM) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Ctx: ctx, Clip: clip})
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Results) > 0 {
		r := m.Results[0]
		m.Results = m.Results[1:]
		return r, nil
	}
	return m.Result, nil
}

// Calls returns the number of recorded Transcribe calls. Thread-safe.
func (m *Transcriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Transcriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = nil
}

// Ensure Transcriber implements asr.Transcriber at compile time.
var _ asr.Transcriber = (*Transcriber)(nil)
