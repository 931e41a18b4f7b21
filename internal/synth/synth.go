// Package synth schedules text-to-speech synthesis for one conversation
// turn and delivers client-bound audio payloads in sentence order.
//
// Each sentence passes a pre-filter first: headings and punctuation-only
// text become silent display payloads, emotion-tag-only units are dropped,
// embedded emotion tags and heading lines are stripped. What survives is
// synthesized in one of two modes. In single mode every sentence becomes
// its own concurrent synthesis task; a sequence number assigned at spawn
// time and a reorder map in the sender goroutine keep delivery in
// submission order no matter which task finishes first. In merge mode,
// used with providers that cannot take parallel requests, consecutive
// sentences accumulate in a buffer and are synthesized as one request per
// round; the progressive policy sizes the rounds 1, 2, 3, 3... so the
// first sentence reaches the client immediately while later rounds
// amortize the provider's rate limit. A merged round emits one payload
// per sentence: the first carries the full audio and volume envelope, the
// rest carry only their envelope slice and timing so the client reveals
// each display fragment in sync with playback.
//
// An Orchestrator serves exactly one turn. Create a fresh one per turn so
// the progressive ramp restarts at one.
package synth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lunavoice/lunavoice/internal/observe"
	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/tts"
	"github.com/lunavoice/lunavoice/pkg/types"
)

// SendFunc delivers one payload to the client.
type SendFunc func(ctx context.Context, payload *types.AudioPayload) error

// defaultMergeCap bounds how many sentences one merged request may carry.
const defaultMergeCap = 3

type config struct {
	merge       bool
	mergeCap    int
	progressive bool
	metrics     *observe.Metrics
}

// Option is a functional option for the Orchestrator.
type Option func(*config)

// WithMerge enables sentence merging. Merging only takes effect when the
// provider reports SupportsConcurrency false; concurrent providers are
// always driven in single mode.
func WithMerge() Option {
	return func(c *config) { c.merge = true }
}

// WithMergeCap sets the maximum number of sentences per merged request.
// Default 3.
func WithMergeCap(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.mergeCap = n
		}
	}
}

// WithoutProgressiveMerge disables the ramp-up: every merge round waits
// for the full cap before flushing.
func WithoutProgressiveMerge() Option {
	return func(c *config) { c.progressive = false }
}

// WithMetrics sets the metrics instance synthesis durations are recorded
// on. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// buffered is one sentence held in the merge buffer.
type buffered struct {
	ttsText string
	out     types.SentenceOutput
}

// result is one submission's finished payloads, keyed by its spawn-time
// sequence number so the sender can restore submission order.
type result struct {
	seq      int
	payloads []*types.AudioPayload
}

// Orchestrator drives synthesis and ordered payload delivery for one turn.
type Orchestrator struct {
	ctx      context.Context
	provider tts.Provider
	send     SendFunc

	merge       bool
	mergeCap    int
	progressive bool
	metrics     *observe.Metrics

	mu       sync.Mutex
	seq      int
	count    int // sentences submitted to the merge buffer this turn
	roundMax int
	buffer   []buffered
	finished bool

	wg      sync.WaitGroup
	results chan result
	done    chan struct{}
}

// New creates an Orchestrator for one turn and starts its sender
// goroutine. ctx is the turn context: cancelling it aborts in-flight
// synthesis and stops delivery. Call Finish (or cancel ctx) when the turn
// ends.
func New(ctx context.Context, provider tts.Provider, send SendFunc, opts ...Option) *Orchestrator {
	cfg := &config{mergeCap: defaultMergeCap, progressive: true}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}

	o := &Orchestrator{
		ctx:         ctx,
		provider:    provider,
		send:        send,
		merge:       cfg.merge && !provider.SupportsConcurrency(),
		mergeCap:    cfg.mergeCap,
		progressive: cfg.progressive,
		metrics:     cfg.metrics,
		results:     make(chan result, 64),
		done:        make(chan struct{}),
	}
	go o.sendLoop()
	return o
}

// Speak submits one sentence for synthesis and delivery. Delivery order
// follows submission order regardless of synthesis completion order.
func (o *Orchestrator) Speak(ctx context.Context, out types.SentenceOutput) error {
	o.mu.Lock()
	if o.finished {
		o.mu.Unlock()
		return fmt.Errorf("synth: orchestrator already finished")
	}
	o.mu.Unlock()

	ttsText := out.TTSText
	if isHeading(ttsText) || isHeading(out.DisplayText.Text) {
		slog.Debug("heading sentence, display only", "text", preview(out.DisplayText.Text))
		o.submitSilent(out)
		return nil
	}
	if isEmotionTagOnly(ttsText) {
		slog.Debug("dropping emotion-tag-only sentence", "text", ttsText)
		return nil
	}
	ttsText = stripEmotionTags(ttsText)
	ttsText = dropHeadingLines(ttsText)
	if strings.TrimSpace(ttsText) == "" || isPunctuationOnly(ttsText) {
		o.submitSilent(out)
		return nil
	}

	if o.merge {
		o.speakMerged(ctx, ttsText, out)
		return nil
	}
	o.speakSingle(ctx, ttsText, out)
	return nil
}

// FlushRemaining synthesizes whatever is left in the merge buffer, even
// below the current round size. Call it when the response stream ends.
func (o *Orchestrator) FlushRemaining(ctx context.Context) {
	o.mu.Lock()
	batch := o.buffer
	o.buffer = nil
	o.mu.Unlock()

	if len(batch) > 0 {
		o.flush(ctx, batch)
	}
}

// Clear drops the merge buffer. Called on barge-in together with turn
// context cancellation, which aborts in-flight synthesis and delivery.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buffer = nil
}

// Finish flushes the residual merge buffer, waits for all in-flight
// synthesis and for every queued payload to be delivered. The
// orchestrator cannot be used afterwards.
func (o *Orchestrator) Finish(ctx context.Context) error {
	o.mu.Lock()
	if o.finished {
		o.mu.Unlock()
		return nil
	}
	o.finished = true
	o.mu.Unlock()

	o.FlushRemaining(ctx)
	o.wg.Wait()
	close(o.results)

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── single mode ───

func (o *Orchestrator) speakSingle(ctx context.Context, ttsText string, out types.SentenceOutput) {
	seq := o.nextSeq()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		synthStart := time.Now()
		path, err := o.provider.Synthesize(ctx, ttsText)
		o.metrics.SynthDuration.Record(ctx, time.Since(synthStart).Seconds())
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("synthesis failed, sending silent payload",
					"text", preview(ttsText), "error", err)
			}
			o.submit(result{seq: seq, payloads: []*types.AudioPayload{silentPayload(out)}})
			return
		}
		defer removeFile(path)

		payload, err := o.buildPayload(path, out)
		if err != nil {
			slog.Error("audio payload build failed, sending silent payload",
				"path", path, "error", err)
			payload = silentPayload(out)
		}
		o.submit(result{seq: seq, payloads: []*types.AudioPayload{payload}})
	}()
}

// buildPayload reads and decodes a finished audio file and assembles the
// client payload with its volume envelope.
func (o *Orchestrator) buildPayload(path string, out types.SentenceOutput) (*types.AudioPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	pcm, err := audio.Decode(data, o.provider.Format())
	if err != nil {
		return nil, fmt.Errorf("decode %s audio: %w", o.provider.Format(), err)
	}
	return &types.AudioPayload{
		Audio:         base64.StdEncoding.EncodeToString(data),
		Volumes:       audio.Envelope(pcm),
		SliceLengthMS: audio.EnvelopeWindowMS,
		DisplayText:   out.DisplayText,
		Actions:       actionsPtr(out.Actions),
	}, nil
}

// ─── merge mode ───

func (o *Orchestrator) speakMerged(ctx context.Context, ttsText string, out types.SentenceOutput) {
	o.mu.Lock()
	o.count++
	if len(o.buffer) == 0 {
		// New round: lock its size now so late arrivals cannot grow it.
		if o.progressive {
			o.roundMax = min(o.count, o.mergeCap)
		} else {
			o.roundMax = o.mergeCap
		}
		slog.Debug("new merge round", "round_max", o.roundMax, "sentence_count", o.count)
	}
	o.buffer = append(o.buffer, buffered{ttsText: ttsText, out: out})

	var batch []buffered
	if len(o.buffer) >= o.roundMax {
		batch = o.buffer
		o.buffer = nil
	}
	o.mu.Unlock()

	if len(batch) > 0 {
		o.flush(ctx, batch)
	}
}

// flush synthesizes one merged request for the batch and emits one payload
// per sentence, apportioning the audio duration by character count.
func (o *Orchestrator) flush(ctx context.Context, batch []buffered) {
	seq := o.nextSeq()

	var merged strings.Builder
	for _, b := range batch {
		merged.WriteString(b.ttsText)
	}

	synthStart := time.Now()
	path, err := o.provider.Synthesize(ctx, merged.String())
	o.metrics.SynthDuration.Record(ctx, time.Since(synthStart).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("merged synthesis failed, sending silent payloads",
				"sentences", len(batch), "error", err)
		}
		o.submit(result{seq: seq, payloads: silentPayloads(batch)})
		return
	}
	defer removeFile(path)

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("merged audio read failed, sending silent payloads", "path", path, "error", err)
		o.submit(result{seq: seq, payloads: silentPayloads(batch)})
		return
	}
	pcm, err := audio.Decode(data, o.provider.Format())
	if err != nil {
		slog.Error("merged audio decode failed, sending silent payloads", "path", path, "error", err)
		o.submit(result{seq: seq, payloads: silentPayloads(batch)})
		return
	}

	totalMS := pcm.DurationMS()
	envelope := audio.Envelope(pcm)

	totalChars := 0
	counts := make([]int, len(batch))
	for i, b := range batch {
		counts[i] = utf8.RuneCountInString(b.ttsText)
		totalChars += counts[i]
	}

	slog.Info("merged audio generated",
		"sentences", len(batch), "chars", totalChars, "duration_ms", totalMS)

	payloads := make([]*types.AudioPayload, len(batch))
	offset := 0
	for i, b := range batch {
		var durMS int
		if i == len(batch)-1 {
			// Last sentence absorbs the integer-division remainder so the
			// slices always sum to the full duration.
			durMS = totalMS - offset
		} else if totalChars > 0 {
			durMS = totalMS * counts[i] / totalChars
		}

		info := &types.MergeInfo{
			IsMerged:           true,
			TotalSentences:     len(batch),
			SentenceIndex:      i,
			SentenceDurationMS: durMS,
			TotalDurationMS:    totalMS,
		}
		p := &types.AudioPayload{
			SliceLengthMS: audio.EnvelopeWindowMS,
			DisplayText:   b.out.DisplayText,
			Actions:       actionsPtr(b.out.Actions),
			MergeInfo:     info,
		}
		if i == 0 {
			p.Audio = base64.StdEncoding.EncodeToString(data)
			p.Volumes = envelope
		} else {
			info.DelayBeforeShowMS = offset
			p.Volumes = audio.SliceEnvelope(envelope, offset, durMS)
		}
		payloads[i] = p
		offset += durMS
	}

	o.submit(result{seq: seq, payloads: payloads})
}

// ─── ordered delivery ───

// sendLoop restores submission order with a reorder map keyed by sequence
// number and forwards payloads to the client. It exits when the results
// channel is closed by Finish, or when the turn context is cancelled: a
// barge-in cancels the context without ever calling Finish, and the sender
// must not outlive the turn.
func (o *Orchestrator) sendLoop() {
	defer close(o.done)

	pending := make(map[int][]*types.AudioPayload)
	next := 0
	for {
		var r result
		select {
		case got, ok := <-o.results:
			if !ok {
				return
			}
			r = got
		case <-o.ctx.Done():
			return
		}

		pending[r.seq] = r.payloads
		for {
			payloads, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			for _, p := range payloads {
				if o.ctx.Err() != nil {
					continue
				}
				if err := o.send(o.ctx, p); err != nil && o.ctx.Err() == nil {
					slog.Warn("audio payload send failed", "error", err)
				}
			}
		}
	}
}

// submit queues one finished result for ordered delivery. The context
// branch keeps producers from blocking on a sender that has already exited
// after cancellation.
func (o *Orchestrator) submit(r result) {
	select {
	case o.results <- r:
	case <-o.ctx.Done():
	}
}

func (o *Orchestrator) submitSilent(out types.SentenceOutput) {
	o.submit(result{seq: o.nextSeq(), payloads: []*types.AudioPayload{silentPayload(out)}})
}

func (o *Orchestrator) nextSeq() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.seq
	o.seq++
	return seq
}

// ─── helpers ───

func silentPayload(out types.SentenceOutput) *types.AudioPayload {
	return &types.AudioPayload{
		SliceLengthMS: audio.EnvelopeWindowMS,
		DisplayText:   out.DisplayText,
		Actions:       actionsPtr(out.Actions),
	}
}

func silentPayloads(batch []buffered) []*types.AudioPayload {
	payloads := make([]*types.AudioPayload, len(batch))
	for i, b := range batch {
		payloads[i] = silentPayload(b.out)
	}
	return payloads
}

func actionsPtr(a types.Actions) *types.Actions {
	if a.IsEmpty() {
		return nil
	}
	return &a
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove cached audio file", "path", path, "error", err)
	}
}

func preview(s string) string {
	const max = 50
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
