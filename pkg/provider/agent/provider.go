// Package agent defines the Provider interface for the conversational model
// driving the avatar.
//
// A provider owns the model-side conversation memory for one client: the
// conversation controller hands it one user input per turn and consumes a
// stream of events that interleaves response text fragments with
// out-of-band records (tool call status updates and similar), exactly as
// the downstream sentence divider expects them.
//
// Implementations must be safe for concurrent use.
package agent

import (
	"context"

	"github.com/lunavoice/lunavoice/pkg/types"
)

// InterruptedMarker is stored in model memory when the user barges in, so
// the model knows its previous reply was cut short.
const InterruptedMarker = "[Interrupted by user]"

// Image is one attachment on a user input. Data is base64 or a data URL;
// MimeType defaults to image/png when the client did not specify one.
type Image struct {
	Source   string `json:"source"`
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// Input is one user turn handed to the model.
type Input struct {
	// Text is the prompt text, already gated and cleaned by the
	// conversation layer (wake word stripped, voice advisory applied).
	Text string

	// Images are optional attachments for vision-capable models.
	Images []Image
}

// Event is one element of the model's response stream. Exactly one field
// is set: Text carries a response fragment, Record an out-of-band payload
// forwarded to the client untouched.
type Event struct {
	Text   string
	Record types.Record
}

// Message is one entry of model-side conversation memory.
type Message struct {
	Role    string
	Content string
}

// Provider is the abstraction over any conversational model backend.
type Provider interface {
	// Chat sends the input to the model and returns a read-only channel of
	// response events. The channel is closed when the response ends or ctx
	// is cancelled; callers must drain it. A non-nil error is returned only
	// when the stream cannot be started.
	//
	// The full response text is appended to model memory by the provider
	// once the stream completes.
	Chat(ctx context.Context, in Input) (<-chan Event, error)

	// HandleInterrupt records a barge-in: heard is the part of the response
	// the user actually received before cancelling. Memory keeps the heard
	// text and an interruption marker instead of the full reply.
	HandleInterrupt(heard string)

	// LoadMemory replaces the conversation memory, typically from the
	// persisted history when a client reconnects.
	LoadMemory(messages []Message)
}
