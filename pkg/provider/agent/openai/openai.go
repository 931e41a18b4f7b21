// Package openai provides an agent backed by the OpenAI chat completions
// API, with vision input support for image attachments.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lunavoice/lunavoice/pkg/provider/agent"
)

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	temperature  float64
	systemPrompt string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithTemperature sets the sampling temperature. Zero uses the API default.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithSystemPrompt sets the persona prompt injected before the history.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) { c.systemPrompt = prompt }
}

// Provider implements agent.Provider using the OpenAI API.
type Provider struct {
	client       oai.Client
	model        string
	temperature  float64
	systemPrompt string
	memory       agent.Memory
}

// New constructs an OpenAI-backed agent.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai agent: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai agent: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		temperature:  cfg.temperature,
		systemPrompt: cfg.systemPrompt,
	}, nil
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
	params := p.buildParams(in)
	p.memory.AppendUser(in.Text)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai agent: start stream: %w", err)
	}

	ch := make(chan agent.Event, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		var full strings.Builder
		for stream.Next() {
			chunk := stream.Current()
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
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- agent.Event{Record: errorRecord(err)}:
			case <-ctx.Done():
			}
		}
		p.memory.AppendAssistant(full.String())
	}()
	return ch, nil
}

func errorRecord(err error) map[string]any {
	return map[string]any{"type": "error", "message": err.Error()}
}

// buildParams assembles the message list: system prompt, memory, then the
// new user input (with image parts when attachments are present).
func (p *Provider) buildParams(in agent.Input) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion

	if p.systemPrompt != "" {
		messages = append(messages, oai.SystemMessage(p.systemPrompt))
	}
	for _, m := range p.memory.Snapshot() {
		switch m.Role {
		case "assistant":
			messages = append(messages, oai.AssistantMessage(m.Content))
		case "system":
			messages = append(messages, oai.SystemMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}
	messages = append(messages, userMessage(in))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if p.temperature != 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}
	return params
}

func userMessage(in agent.Input) oai.ChatCompletionMessageParamUnion {
	if len(in.Images) == 0 {
		return oai.UserMessage(in.Text)
	}
	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart(in.Text),
	}
	for _, img := range in.Images {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}
	return oai.UserMessage(parts)
}

// dataURL normalizes an image attachment to a data URL the API accepts.
func dataURL(img agent.Image) string {
	if strings.HasPrefix(img.Data, "data:") {
		return img.Data
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + img.Data
}

var _ agent.Provider = (*Provider)(nil)
