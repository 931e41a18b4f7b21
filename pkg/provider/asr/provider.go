// Package asr defines the Transcriber interface for speech recognition
// backends.
//
// The conversation layer buffers microphone chunks until the client signals
// end of utterance, then submits the whole clip at once, so the contract is
// batch transcription rather than a streaming session: one PCM clip in, one
// transcript out.
//
// Implementations must be safe for concurrent use.
package asr

import (
	"context"

	"github.com/lunavoice/lunavoice/pkg/audio"
)

// Transcriber is the abstraction over any speech recognition backend.
type Transcriber interface {
	// Transcribe converts a complete utterance to text. The returned text is
	// whitespace-trimmed; an empty string means the backend heard nothing
	// usable. Returns an error if recognition fails or ctx is cancelled.
	Transcribe(ctx context.Context, clip audio.PCM) (string, error)
}
