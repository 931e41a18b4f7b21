// Package pipeline implements the transformer chain that turns segmented
// sentence units into renderable outputs: avatar action extraction, display
// text shaping, and the speech-text projection. Out-of-band records pass
// through every stage untouched and in order.
package pipeline

import (
	"context"

	"github.com/lunavoice/lunavoice/internal/divider"
	"github.com/lunavoice/lunavoice/internal/ttstext"
	"github.com/lunavoice/lunavoice/pkg/types"
)

// Event is one item of chain output: either a complete sentence output or a
// passed-through record. Exactly one field is set.
type Event struct {
	Output *types.SentenceOutput
	Record types.Record
}

// Option configures a Chain.
type Option func(*Chain)

// WithEmotionDetector sets the detector used to extract avatar expressions
// from sentence text. Default is a detector that finds nothing.
func WithEmotionDetector(d EmotionDetector) Option {
	return func(c *Chain) {
		if d != nil {
			c.detector = d
		}
	}
}

// WithCharacter stamps the avatar's display name and avatar image onto
// every display text.
func WithCharacter(name, avatar string) Option {
	return func(c *Chain) {
		c.name = name
		c.avatar = avatar
	}
}

// WithTTSOptions sets the speech-text projection options.
// Default is ttstext.DefaultOptions.
func WithTTSOptions(opts ttstext.Options) Option {
	return func(c *Chain) {
		c.ttsOpts = opts
	}
}

// Chain is the composed transformer pipeline. It is stateless across turns
// and safe to reuse.
type Chain struct {
	detector EmotionDetector
	name     string
	avatar   string
	ttsOpts  ttstext.Options
}

// NewChain creates a Chain with the given options.
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		detector: noopDetector{},
		ttsOpts:  ttstext.DefaultOptions(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run consumes divider events and produces sentence outputs. The returned
// channel closes when in closes or ctx is cancelled.
func (c *Chain) Run(ctx context.Context, in <-chan divider.Event) <-chan Event {
	annotated := c.extractActions(ctx, in)
	displayed := c.processDisplay(ctx, annotated)
	return c.filterTTS(ctx, displayed)
}

// ─── stage types ───

type annotatedEvent struct {
	unit    *types.SentenceUnit
	actions types.Actions
	record  types.Record
}

type displayedEvent struct {
	unit    *types.SentenceUnit
	display types.DisplayText
	actions types.Actions
	record  types.Record
}

// ─── stage 1: actions extractor ───

// extractActions scans sentence text for expression cues. Tag boundary
// units (opening or closing) carry no sentence text and are skipped.
func (c *Chain) extractActions(ctx context.Context, in <-chan divider.Event) <-chan annotatedEvent {
	out := make(chan annotatedEvent)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				next := annotatedEvent{record: ev.Record}
				if ev.Sentence != nil {
					next.unit = ev.Sentence
					if !boundaryState(ev.Sentence) {
						next.actions = types.Actions{Expressions: c.detector.Detect(ev.Sentence.Text)}
					}
				}
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func boundaryState(u *types.SentenceUnit) bool {
	for _, t := range u.Tags {
		if t.State == types.TagStart || t.State == types.TagEnd {
			return true
		}
	}
	return false
}

// ─── stage 2: display processor ───

// processDisplay shapes the UI-facing text. A think-tag boundary renders as
// an opening or closing parenthesis so the client can show the model's
// hidden reasoning as a quiet aside; everything else displays verbatim.
func (c *Chain) processDisplay(ctx context.Context, in <-chan annotatedEvent) <-chan displayedEvent {
	out := make(chan displayedEvent)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				next := displayedEvent{unit: ev.unit, actions: ev.actions, record: ev.record}
				if ev.unit != nil {
					next.display = types.DisplayText{
						Text:   c.displayTextFor(ev.unit),
						Name:   c.name,
						Avatar: c.avatar,
					}
				}
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (c *Chain) displayTextFor(u *types.SentenceUnit) string {
	for _, t := range u.Tags {
		if t.Name != "think" {
			continue
		}
		switch t.State {
		case types.TagStart:
			return "("
		case types.TagEnd:
			return ")"
		}
	}
	return u.Text
}

// ─── stage 3: speech-text projection ───

// filterTTS computes the speech text. Think-tagged content is never spoken;
// dual-stream speech text is used as given, save for trailing punctuation;
// everything else goes through the ttstext projection of the display text.
func (c *Chain) filterTTS(ctx context.Context, in <-chan displayedEvent) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				next := Event{Record: ev.record}
				if ev.unit != nil {
					next.Output = &types.SentenceOutput{
						DisplayText: ev.display,
						TTSText:     c.ttsTextFor(ev.unit, ev.display),
						Actions:     ev.actions,
					}
				}
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (c *Chain) ttsTextFor(u *types.SentenceUnit, display types.DisplayText) string {
	for _, t := range u.Tags {
		if t.Name == "think" {
			return ""
		}
	}
	if u.HasTTSText {
		return ttstext.TrimTrailingPunct(u.TTSText)
	}
	return ttstext.Apply(display.Text, c.ttsOpts)
}
