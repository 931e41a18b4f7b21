// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (a remote HTTP API such as
// Stepfun or OpenAI, or a local engine) and turns one sentence of text into
// one audio file under the server's audio cache. The orchestrator decides
// scheduling: providers that report SupportsConcurrency false are driven
// strictly one request at a time and become candidates for sentence merging,
// which amortizes a tight provider-side rate limit across several sentences.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text to speech and writes the result to a new file
	// in the provider's audio cache, returning its path. The caller owns the
	// file and deletes it once the audio payload has been built.
	//
	// Returns an error if synthesis fails after the provider's own retry
	// policy is exhausted or if ctx is cancelled.
	Synthesize(ctx context.Context, text string) (string, error)

	// Format returns the file extension of produced audio, without the dot
	// (e.g. "mp3", "wav").
	Format() string

	// SupportsConcurrency reports whether the backend tolerates parallel
	// synthesis requests. Backends with a strict concurrency-1 rate policy
	// return false; the orchestrator then serializes calls and may merge
	// consecutive sentences into a single request.
	SupportsConcurrency() bool
}
