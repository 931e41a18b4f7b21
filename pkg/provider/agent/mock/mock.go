// Package mock provides a test double for the agent.Provider interface.
//
// Use Provider to script a response stream of text fragments and records
// and to verify the inputs and interrupts delivered by the conversation
// layer.
package mock

import (
	"context"
	"sync"

	"github.com/lunavoice/lunavoice/pkg/provider/agent"
)

// ChatCall records a single invocation of Chat.
type ChatCall struct {
	// Ctx is the context passed to Chat.
	Ctx context.Context
	// Input is the input passed to Chat.
	Input agent.Input
}

// Provider is a mock implementation of agent.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Events is the scripted response stream emitted by every Chat call.
	Events []agent.Event

	// ChatErr, if non-nil, is returned by Chat instead of a stream.
	ChatErr error

	// Block, if non-nil, is received from before each event is emitted,
	// letting tests pace the stream and trigger mid-stream cancellation.
	Block chan struct{}

	// --- Call records ---

	// ChatCalls records every call to Chat in order.
	ChatCalls []ChatCall

	// Interrupts records every heard-text passed to HandleInterrupt.
	Interrupts []string

	// LoadedMemory records the last message list passed to LoadMemory.
	LoadedMemory []agent.Message
}

// Chat records the call and streams the scripted events.
func (p *Provider) Chat(ctx context.Context, in agent.Input) (<-chan agent.Event, error) {
	p.mu.Lock()
	p.ChatCalls = append(p.ChatCalls, ChatCall{Ctx: ctx, Input: in})
	events := append(p.Events[:0:0], p.Events...)
	block := p.Block
	err := p.ChatErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan agent.Event)
	go func() {
		defer close(ch)
		for _, ev := range events {
			if block != nil {
				select {
				case <-block:
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// HandleInterrupt records the heard text.
func (p *Provider) HandleInterrupt(heard string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Interrupts = append(p.Interrupts, heard)
}

// LoadMemory records the message list.
func (p *Provider) LoadMemory(messages []agent.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadedMemory = append(messages[:0:0], messages...)
}

// Inputs returns the chat input texts in call order. Thread-safe.
func (p *Provider) Inputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	texts := make([]string, len(p.ChatCalls))
	for i, c := range p.ChatCalls {
		texts[i] = c.Input.Text
	}
	return texts
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ChatCalls = nil
	p.Interrupts = nil
	p.LoadedMemory = nil
}

// Ensure Provider implements agent.Provider at compile time.
var _ agent.Provider = (*Provider)(nil)
