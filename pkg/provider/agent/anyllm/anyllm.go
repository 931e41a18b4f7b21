// Package anyllm provides an agent backed by github.com/mozilla-ai/any-llm-go,
// a unified multi-provider interface supporting OpenAI, Anthropic, Gemini,
// Ollama, DeepSeek, Mistral, Groq, and more.
//
// Image attachments are not forwarded: the unified interface is text-only,
// so vision-capable setups should use the dedicated OpenAI agent instead.
package anyllm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/lunavoice/lunavoice/pkg/provider/agent"
)

// Provider implements agent.Provider by wrapping any-llm-go.
type Provider struct {
	backend      anyllmlib.Provider
	model        string
	systemPrompt string
	memory       agent.Memory
}

// New creates a Provider backed by the given backend name, one of:
// "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral",
// "groq", "llamacpp", "llamafile".
//
// opts are any-llm-go configuration options (e.g. anyllmlib.WithAPIKey).
// Without an API key option the backend falls back to its environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backendName, model, systemPrompt string, opts ...anyllmlib.Option) (*Provider, error) {
	if backendName == "" {
		return nil, fmt.Errorf("anyllm: backendName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	backend, err := createBackend(backendName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backendName, err)
	}
	return &Provider{backend: backend, model: model, systemPrompt: systemPrompt}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", name)
	}
}

// LoadMemory implements agent.Provider.
func (p *Provider) LoadMemory(messages []agent.Message) {
	p.memory.Load(messages)
}

// HandleInterrupt implements agent.Provider.
func (p *Provider) HandleInterrupt(heard string) {
	p.memory.AppendInterrupted(heard)
}

// Chat implements agent.Provider.
func (p *Provider) Chat(ctx context.Context, in agent.Input) (<-chan agent.Event, error) {
	if len(in.Images) > 0 {
		slog.Warn("image attachments dropped, backend interface is text-only",
			"count", len(in.Images))
	}

	params := p.buildParams(in.Text)
	p.memory.AppendUser(in.Text)

	backendChunks, backendErrs := p.backend.CompletionStream(ctx, params)

	ch := make(chan agent.Event, 32)
	go func() {
		defer close(ch)

		var full strings.Builder
		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			full.WriteString(text)
			select {
			case ch <- agent.Event{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := <-backendErrs; err != nil && ctx.Err() == nil {
			select {
			case ch <- agent.Event{Record: map[string]any{"type": "error", "message": err.Error()}}:
			case <-ctx.Done():
			}
		}
		p.memory.AppendAssistant(full.String())
	}()
	return ch, nil
}

func (p *Provider) buildParams(text string) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if p.systemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: p.systemPrompt,
		})
	}
	for _, m := range p.memory.Snapshot() {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleUser, Content: text})

	return anyllmlib.CompletionParams{Model: p.model, Messages: messages}
}

var _ agent.Provider = (*Provider)(nil)
