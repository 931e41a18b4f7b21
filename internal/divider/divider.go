// Package divider implements the incremental sentence divider: it consumes
// a stream of model-output fragments (text interleaved with out-of-band
// control records) and produces a stream of tagged sentence units, with
// records passed through in their original position.
//
// # Architecture
//
// Text accumulates in an internal buffer. After every fragment the divider
// drains as many complete units from the buffer as it can: tag boundaries
// of the configured tag grammar, comma-split first sentences (when the
// faster-first-response option is on), and sentences ending in terminal
// punctuation. Whatever remains is carried into the next fragment, and the
// stream's end flushes it as a final unit.
//
// An alternative dual-stream mode replaces segmentation entirely with the
// <show>…</show><say>…</say> pair grammar, producing units that carry both
// a display text and an explicit speech text.
package divider

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lunavoice/lunavoice/internal/textseg"
	"github.com/lunavoice/lunavoice/pkg/types"
)

// Fragment is one item of model output: either a text chunk or an
// out-of-band record. Exactly one field is set.
type Fragment struct {
	Text   string
	Record types.Record
}

// Event is one item of divider output: either a segmented sentence unit or
// a passed-through record. Exactly one field is set.
type Event struct {
	Sentence *types.SentenceUnit
	Record   types.Record
}

// Option configures a Divider.
type Option func(*Divider)

// WithFasterFirstResponse controls whether the first sentence of a turn may
// be split at a safe comma to reduce time to first audio. Default true.
func WithFasterFirstResponse(enabled bool) Option {
	return func(d *Divider) {
		d.fasterFirst = enabled
	}
}

// WithSegmentMethod selects the segmentation method. Default is the
// statistical method with regex fallback.
func WithSegmentMethod(m textseg.Method) Option {
	return func(d *Divider) {
		d.method = m
	}
}

// WithValidTags sets the recognized tag names. Default is ["think"].
func WithValidTags(tags []string) Option {
	return func(d *Divider) {
		if len(tags) > 0 {
			d.validTags = tags
		}
	}
}

// WithDualStream enables the <show>/<say> dual-stream grammar instead of
// sentence segmentation. Default false.
func WithDualStream(enabled bool) Option {
	return func(d *Divider) {
		d.dualStream = enabled
	}
}

// Divider is the incremental segmenter. It is not safe for concurrent use;
// each conversation turn owns one.
type Divider struct {
	fasterFirst bool
	method      textseg.Method
	validTags   []string
	dualStream  bool

	buf           string
	tagStack      []string
	firstSentence bool
}

// New creates a Divider with the given options.
func New(opts ...Option) *Divider {
	d := &Divider{
		fasterFirst:   true,
		method:        textseg.MethodStatistical,
		validTags:     []string{"think"},
		firstSentence: true,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Reset clears the buffer, the tag stack and the first-sentence flag.
// Called at the start of every conversation turn.
func (d *Divider) Reset() {
	d.buf = ""
	d.tagStack = d.tagStack[:0]
	d.firstSentence = true
}

// Process consumes fragments from in and returns a channel of events. The
// returned channel is closed when in closes (after the buffer is flushed)
// or when ctx is cancelled. Process resets the divider state before reading.
func (d *Divider) Process(ctx context.Context, in <-chan Fragment) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)
		d.Reset()

		emit := func(events []Event) bool {
			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			select {
			case frag, ok := <-in:
				if !ok {
					if !emit(d.flush()) {
						return
					}
					return
				}
				if frag.Record != nil {
					// Drain pending sentences first so the record keeps
					// its position relative to the text around it.
					if !emit(d.drain()) {
						return
					}
					if !emit([]Event{{Record: frag.Record}}) {
						return
					}
					continue
				}
				d.buf += frag.Text
				if !emit(d.drain()) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// drain processes the buffer with the active grammar and returns the
// resulting events.
func (d *Divider) drain() []Event {
	var units []types.SentenceUnit
	if d.dualStream {
		units = d.processDualStream()
	} else {
		units = d.processBuffer()
	}
	return toEvents(units)
}

// flush drains the buffer and then emits any residue as a final unit.
func (d *Divider) flush() []Event {
	if d.dualStream {
		return toEvents(d.flushDualStream())
	}

	units := d.processBuffer()
	if residue := strings.TrimSpace(d.buf); residue != "" {
		units = append(units, types.SentenceUnit{
			Text: residue,
			Tags: d.currentTags(),
		})
		d.buf = ""
	}
	return toEvents(units)
}

func toEvents(units []types.SentenceUnit) []Event {
	events := make([]Event, 0, len(units))
	for i := range units {
		u := units[i]
		events = append(events, Event{Sentence: &u})
	}
	return events
}

// currentTags returns the active tag context, outermost first, or a single
// TagNone info when no tag is open.
func (d *Divider) currentTags() []types.TagInfo {
	if len(d.tagStack) == 0 {
		return []types.TagInfo{{State: types.TagNone}}
	}
	tags := make([]types.TagInfo, len(d.tagStack))
	for i, name := range d.tagStack {
		tags[i] = types.TagInfo{Name: name, State: types.TagInside}
	}
	return tags
}

// processBuffer repeatedly consumes complete units from the buffer until no
// further progress is possible.
func (d *Divider) processBuffer() []types.SentenceUnit {
	var units []types.SentenceUnit

	for {
		if strings.TrimSpace(d.buf) == "" {
			break
		}

		tagPos, tagToken := d.findNextTag()

		if tagPos == 0 {
			// Tag boundary at the head of the buffer.
			info, rest := d.consumeTag()
			units = append(units, types.SentenceUnit{Text: "", Tags: []types.TagInfo{info}})
			d.buf = rest
			continue
		}

		if tagPos > 0 && tagPos < len(d.buf) {
			before := d.buf[:tagPos]

			if textseg.ContainsEndPunctuation(before) {
				// Complete sentences precede the tag: emit them with the
				// current tag context and consume all of the leading text.
				sentences, _ := d.segment(before)
				tags := d.currentTags()
				for _, s := range sentences {
					if strings.TrimSpace(s) != "" {
						units = append(units, types.SentenceUnit{Text: strings.TrimSpace(s), Tags: tags})
					}
				}
				d.buf = d.buf[tagPos:]
				continue
			}

			if strings.TrimSpace(before) != "" && tagToken != "" {
				// No terminal punctuation, but the tag itself provides a
				// boundary: emit the leading text as one fragment.
				units = append(units, types.SentenceUnit{
					Text: strings.TrimSpace(before),
					Tags: d.currentTags(),
				})
				d.buf = d.buf[tagPos:]
				continue
			}

			info, rest := d.consumeTag()
			units = append(units, types.SentenceUnit{Text: "", Tags: []types.TagInfo{info}})
			d.buf = rest
			continue
		}

		// No tag in the buffer: try the comma fast path for the turn's
		// first sentence, then regular segmentation.
		if d.firstSentence && d.fasterFirst && textseg.ContainsComma(d.buf) {
			if head, rest, ok := textseg.SplitAtFirstComma(d.buf); ok && head != "" {
				units = append(units, types.SentenceUnit{Text: head, Tags: d.currentTags()})
				d.buf = rest
				d.firstSentence = false
				continue
			}
		}

		if textseg.ContainsEndPunctuation(d.buf) {
			sentences, remaining := d.segment(d.buf)
			if len(sentences) > 0 {
				d.buf = remaining
				d.firstSentence = false
				tags := d.currentTags()
				for _, s := range sentences {
					if strings.TrimSpace(s) != "" {
						units = append(units, types.SentenceUnit{Text: strings.TrimSpace(s), Tags: tags})
					}
				}
				continue
			}
		}

		break
	}

	return units
}

// segment splits buffered text into sentences. Lines are segmented
// independently: a newline is itself a hard boundary, so every non-final
// line's remainder is emitted as a complete sentence. Emitted sentences get
// the enumerator-merge and trailing-punctuation post-processing.
func (d *Divider) segment(text string) ([]string, string) {
	lines := strings.Split(text, "\n")

	var all []string
	lastRemaining := ""
	for i, line := range lines {
		last := i == len(lines)-1
		if last {
			// The final line's trailing whitespace must survive: the next
			// fragment is appended to the remainder verbatim.
			line = strings.TrimLeft(line, " \t\r")
		} else {
			line = strings.TrimSpace(line)
		}
		if line == "" {
			continue
		}

		sentences, remaining := textseg.Segment(line, d.method)
		all = append(all, sentences...)
		if last {
			lastRemaining = remaining
		} else if strings.TrimSpace(remaining) != "" {
			all = append(all, strings.TrimSpace(remaining))
		}
	}

	all = textseg.MergeIsolatedEnumerators(all)
	for i, s := range all {
		all[i] = textseg.TrimTrailingCJKPunct(s)
	}
	return all, lastRemaining
}

// findNextTag locates the earliest occurrence of any recognized tag token
// in the buffer. Returns (-1, "") when none is present.
func (d *Divider) findNextTag() (int, string) {
	pos := -1
	token := ""
	for _, tag := range d.validTags {
		for _, t := range []string{"<" + tag + ">", "</" + tag + ">", "<" + tag + "/>"} {
			if p := strings.Index(d.buf, t); p >= 0 && (pos < 0 || p < pos) {
				pos = p
				token = t
			}
		}
	}
	return pos, token
}

// consumeTag extracts the first tag token from the buffer, updates the tag
// stack and returns the tag info plus the remaining buffer (left-trimmed).
// A closing tag that does not match the top of the stack is logged and
// leaves the stack unchanged.
func (d *Divider) consumeTag() (types.TagInfo, string) {
	type candidate struct {
		pos   int
		end   int
		name  string
		state types.TagState
	}

	best := candidate{pos: len(d.buf) + 1}
	consider := func(token, name string, state types.TagState) {
		if p := strings.Index(d.buf, token); p >= 0 && p < best.pos {
			best = candidate{pos: p, end: p + len(token), name: name, state: state}
		}
	}
	for _, tag := range d.validTags {
		consider("<"+tag+"/>", tag, types.TagSelfClosing)
	}
	for _, tag := range d.validTags {
		consider("<"+tag+">", tag, types.TagStart)
	}
	for _, tag := range d.validTags {
		consider("</"+tag+">", tag, types.TagEnd)
	}

	if best.pos > len(d.buf) {
		return types.TagInfo{State: types.TagNone}, d.buf
	}

	switch best.state {
	case types.TagStart:
		d.tagStack = append(d.tagStack, best.name)
	case types.TagEnd:
		if len(d.tagStack) == 0 || d.tagStack[len(d.tagStack)-1] != best.name {
			slog.Warn("mismatched closing tag", "tag", best.name)
		} else {
			d.tagStack = d.tagStack[:len(d.tagStack)-1]
		}
	}

	rest := strings.TrimLeft(d.buf[best.end:], " \t\r\n")
	return types.TagInfo{Name: best.name, State: best.state}, rest
}
