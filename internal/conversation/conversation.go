// Package conversation implements the turn lifecycle controller for one
// client: pre-screening input (transcription, noise rejection, stop and
// wake words), streaming a model response through the sentence divider and
// transformer chain into the synthesis orchestrator, finalizing the turn
// against the client's playback acknowledgement, and cancelling it on
// barge-in.
//
// One Controller serves one client connection. At most one turn is active
// at a time; a new valid input cancels the previous turn before starting.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lunavoice/lunavoice/internal/divider"
	"github.com/lunavoice/lunavoice/internal/history"
	"github.com/lunavoice/lunavoice/internal/observe"
	"github.com/lunavoice/lunavoice/internal/pipeline"
	"github.com/lunavoice/lunavoice/internal/synth"
	"github.com/lunavoice/lunavoice/internal/wakeword"
	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/agent"
	"github.com/lunavoice/lunavoice/pkg/provider/asr"
	"github.com/lunavoice/lunavoice/pkg/provider/tts"
	"github.com/lunavoice/lunavoice/pkg/types"
)

// voiceAdvisory is prepended to the model input for voice turns when
// voice-prompt injection is enabled. The stored history keeps the raw
// transcript.
const voiceAdvisory = "【以下是语音输入转译，可能存在谐音字或识别误差，请理解原意】"

// defaultProactivePrompt is used when no proactive prompt file is
// configured.
const defaultProactivePrompt = "Please say something."

// defaultCancelShield bounds how long Interrupt waits for a cancelled turn
// to wind down before dropping its handle.
const defaultCancelShield = 500 * time.Millisecond

// SendFunc delivers one JSON-serializable message to the client.
type SendFunc func(ctx context.Context, msg any) error

// AckFunc blocks until the client acknowledges audio playback completion
// (the frontend-playback-complete message) or ctx is cancelled.
type AckFunc func(ctx context.Context) error

// Character describes the persona fronting the conversation.
type Character struct {
	// ConfUID identifies the character configuration in history storage.
	ConfUID string

	// Name is the character's display name stamped on payloads.
	Name string

	// Avatar is the character's avatar path.
	Avatar string

	// HumanName is the display name used for the user's messages.
	HumanName string
}

type config struct {
	asrP            asr.Transcriber
	store           history.Store
	char            Character
	ack             AckFunc
	proactivePrompt string
	mergeAudio      bool
	mergeCap        int
	shield          time.Duration
	dividerOpts     []divider.Option
	pipelineOpts    []pipeline.Option
	metrics         *observe.Metrics
}

// Option is a functional option for the Controller.
type Option func(*config)

// WithASR configures the transcriber for voice input. Without one, voice
// input is rejected.
func WithASR(t asr.Transcriber) Option {
	return func(c *config) { c.asrP = t }
}

// WithHistory configures chat history persistence.
func WithHistory(store history.Store) Option {
	return func(c *config) { c.store = store }
}

// WithCharacter sets the persona stamped on messages and history entries.
func WithCharacter(char Character) Option {
	return func(c *config) { c.char = char }
}

// WithPlaybackAck sets the function awaited between backend-synth-complete
// and force-new-message. Without one, finalize proceeds immediately.
func WithPlaybackAck(ack AckFunc) Option {
	return func(c *config) { c.ack = ack }
}

// WithProactivePrompt sets the prompt text used for ai-speak-signal turns.
func WithProactivePrompt(prompt string) Option {
	return func(c *config) { c.proactivePrompt = prompt }
}

// WithMergeAudio enables sentence merging in the synthesis orchestrator,
// with the given per-request sentence cap (0 keeps the default).
func WithMergeAudio(cap int) Option {
	return func(c *config) {
		c.mergeAudio = true
		c.mergeCap = cap
	}
}

// WithCancelShield overrides the barge-in wind-down timeout.
func WithCancelShield(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.shield = d
		}
	}
}

// WithDividerOptions forwards options to the per-turn sentence divider.
func WithDividerOptions(opts ...divider.Option) Option {
	return func(c *config) { c.dividerOpts = append(c.dividerOpts, opts...) }
}

// WithPipelineOptions forwards options to the transformer chain.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(c *config) { c.pipelineOpts = append(c.pipelineOpts, opts...) }
}

// WithMetrics sets the metrics instance turn, transcription and payload
// measurements are recorded on. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Controller manages conversation turns for one client.
type Controller struct {
	agentP agent.Provider
	ttsP   tts.Provider
	send   SendFunc

	cfg   config
	chain *pipeline.Chain
	words wakeword.Matcher

	mu         sync.Mutex
	historyUID string
	active     *turn
}

// turn is the handle of one running conversation turn.
type turn struct {
	cancel context.CancelFunc
	done   chan struct{}
	orch   *synth.Orchestrator
	marker string
}

// New creates a Controller for one client.
func New(agentP agent.Provider, ttsP tts.Provider, send SendFunc, opts ...Option) *Controller {
	cfg := config{
		proactivePrompt: defaultProactivePrompt,
		shield:          defaultCancelShield,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}

	pipeOpts := append([]pipeline.Option{
		pipeline.WithCharacter(cfg.char.Name, cfg.char.Avatar),
	}, cfg.pipelineOpts...)

	return &Controller{
		agentP: agentP,
		ttsP:   ttsP,
		send:   send,
		cfg:    cfg,
		chain:  pipeline.NewChain(pipeOpts...),
	}
}

// SetHistoryUID selects the history new turns append to. An empty uid
// disables persistence.
func (c *Controller) SetHistoryUID(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyUID = uid
}

// ResumeHistory selects an existing history and replays its messages into
// the model's memory.
func (c *Controller) ResumeHistory(ctx context.Context, uid string) error {
	if c.cfg.store == nil {
		return fmt.Errorf("conversation: no history store configured")
	}
	msgs, err := c.cfg.store.Messages(ctx, c.cfg.char.ConfUID, uid)
	if err != nil {
		return fmt.Errorf("conversation: resume history %s: %w", uid, err)
	}

	memory := make([]agent.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		switch m.Role {
		case history.RoleAI:
			role = "assistant"
		case history.RoleSystem:
			role = "system"
		}
		memory = append(memory, agent.Message{Role: role, Content: m.Content})
	}
	c.agentP.LoadMemory(memory)
	c.SetHistoryUID(uid)
	return nil
}

// HandleText starts a turn from typed input. Empty input is ignored.
func (c *Controller) HandleText(ctx context.Context, text string, images []agent.Image) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.startTurn(ctx, text, images, turnOpts{source: "text"})
	return nil
}

// HandleVoice pre-screens one recorded utterance and starts a turn when it
// survives transcription, noise rejection and stop/wake word gating.
func (c *Controller) HandleVoice(ctx context.Context, clip audio.PCM, wakeCfg, stopCfg *wakeword.Config) error {
	if c.cfg.asrP == nil {
		return fmt.Errorf("conversation: voice input without a transcriber")
	}

	asrStart := time.Now()
	text, err := c.cfg.asrP.Transcribe(ctx, clip)
	c.cfg.metrics.ASRDuration.Record(ctx, time.Since(asrStart).Seconds())
	if err != nil {
		return fmt.Errorf("conversation: transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Info("transcription empty, skipping turn")
		return nil
	}
	if isNoise(text) {
		slog.Info("transcription is noise, skipping turn", "text", text)
		return nil
	}

	// Stop words outrank everything: they cancel the running turn and
	// never start a new one.
	if stop := c.words.CheckStop(text, stopCfg); stop.Matched {
		slog.Info("stop word detected", "word", stop.Word, "text", text)
		if err := c.send(ctx, types.Record{
			"type":          "user-input-transcription",
			"text":          fmt.Sprintf("（停止词：%s）", stop.Word),
			"original_text": text,
			"is_stop_word":  true,
		}); err != nil {
			return err
		}
		c.Interrupt(ctx, "")
		return c.send(ctx, types.Record{"type": "control", "text": "interrupt"})
	}

	// The advisory applies to any audio-sourced turn when enabled, with or
	// without wake gating.
	injectAdvisory := wakeCfg != nil && wakeCfg.VoicePromptInjection

	if wakeCfg.Active() {
		wake := c.words.CheckWake(text, wakeCfg)
		if !wake.Matched {
			slog.Info("wake word not detected, dropping input", "text", text)
			return nil
		}
		if wake.CleanText == "" {
			// Only the wake word was uttered; acknowledge and wait.
			slog.Info("wake word only, waiting for more input", "word", wake.Word)
			return c.send(ctx, types.Record{
				"type": "user-input-transcription",
				"text": fmt.Sprintf("（唤醒词：%s）", wake.Word),
			})
		}
		text = wake.CleanText
	}

	if err := c.send(ctx, types.Record{"type": "user-input-transcription", "text": text}); err != nil {
		return err
	}
	c.startTurn(ctx, text, nil, turnOpts{source: "voice", voice: true, injectAdvisory: injectAdvisory})
	return nil
}

// HandleProactive starts an unprompted turn from the configured proactive
// prompt. Nothing is persisted to history.
func (c *Controller) HandleProactive(ctx context.Context) error {
	if err := c.send(ctx, types.Record{
		"type": "full-text",
		"text": "AI wants to speak something...",
	}); err != nil {
		return err
	}
	c.startTurn(ctx, c.cfg.proactivePrompt, nil, turnOpts{source: "proactive", skipHistory: true})
	return nil
}

// Interrupt cancels the active turn on barge-in. heard is the part of the
// response the client reports was played; it is recorded in model memory
// and, together with an interruption marker, in history.
func (c *Controller) Interrupt(ctx context.Context, heard string) {
	c.mu.Lock()
	t := c.active
	c.active = nil
	historyUID := c.historyUID
	c.mu.Unlock()

	if t == nil {
		return
	}

	t.cancel()
	t.orch.Clear()
	select {
	case <-t.done:
	case <-time.After(c.cfg.shield):
		slog.Warn("turn did not wind down within shield, dropping handle", "turn", t.marker)
	}
	slog.Info("conversation turn interrupted", "turn", t.marker)

	c.agentP.HandleInterrupt(heard)

	if heard != "" && historyUID != "" && c.cfg.store != nil {
		c.persist(ctx, historyUID, history.Message{
			Role:    history.RoleAI,
			Content: heard,
			Name:    c.cfg.char.Name,
			Avatar:  c.cfg.char.Avatar,
		})
		c.persist(ctx, historyUID, history.Message{
			Role:    history.RoleSystem,
			Content: agent.InterruptedMarker,
		})
	}
}

// Busy reports whether a turn is currently running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && !c.active.finished()
}

func (t *turn) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

type turnOpts struct {
	source         string // "text", "voice" or "proactive"
	voice          bool
	injectAdvisory bool
	skipHistory    bool
}

// startTurn cancels any running turn and spawns the new one. It returns
// once the turn goroutine is registered; the turn itself runs to finalize
// or cancellation in the background.
func (c *Controller) startTurn(ctx context.Context, text string, images []agent.Image, opts turnOpts) {
	c.mu.Lock()
	prev := c.active
	c.mu.Unlock()
	if prev != nil && !prev.finished() {
		slog.Info("cancelling previous turn before starting a new one", "turn", prev.marker)
		c.Interrupt(ctx, "")
	}

	turnCtx, cancel := context.WithCancel(ctx)
	t := &turn{
		cancel: cancel,
		done:   make(chan struct{}),
		marker: pickMarker(),
	}

	synthOpts := []synth.Option{synth.WithMetrics(c.cfg.metrics)}
	if c.cfg.mergeAudio {
		synthOpts = append(synthOpts, synth.WithMerge(), synth.WithMergeCap(c.cfg.mergeCap))
	}
	t.orch = synth.New(turnCtx, c.ttsP, c.sendPayload, synthOpts...)

	c.mu.Lock()
	c.active = t
	historyUID := c.historyUID
	c.mu.Unlock()

	go c.runTurn(turnCtx, t, historyUID, text, images, opts)
}

// runTurn drives one turn end to end: start signals, model stream through
// divider and transformer chain into the orchestrator, then finalize.
func (c *Controller) runTurn(ctx context.Context, t *turn, historyUID, text string, images []agent.Image, opts turnOpts) {
	defer close(t.done)
	defer t.cancel()
	defer t.orch.Clear()

	c.cfg.metrics.RecordTurn(ctx, opts.source)
	c.cfg.metrics.ActiveTurns.Add(ctx, 1)
	turnStart := time.Now()
	defer func() {
		c.cfg.metrics.ActiveTurns.Add(ctx, -1)
		c.cfg.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	}()

	slog.Info("conversation turn started", "turn", t.marker, "voice", opts.voice)
	c.sendRecord(ctx, types.Record{"type": "control", "text": "conversation-chain-start"})
	c.sendRecord(ctx, types.Record{"type": "full-text", "text": "Thinking..."})

	// History stores the raw input even when the model sees the advisory.
	if !opts.skipHistory && historyUID != "" {
		c.persist(ctx, historyUID, history.Message{
			Role:    history.RoleHuman,
			Content: text,
			Name:    c.cfg.char.HumanName,
		})
	}

	modelInput := text
	if opts.voice && opts.injectAdvisory {
		modelInput = voiceAdvisory + "\n" + text
	}

	chatStart := time.Now()
	events, err := c.agentP.Chat(ctx, agent.Input{Text: modelInput, Images: images})
	if err != nil {
		slog.Error("model chat failed", "turn", t.marker, "error", err)
		c.sendRecord(ctx, types.Record{
			"type":    "error",
			"message": fmt.Sprintf("Error processing agent response: %v", err),
		})
		c.sendRecord(ctx, types.Record{"type": "control", "text": "conversation-chain-end"})
		return
	}

	fragments := make(chan divider.Fragment)
	go func() {
		defer close(fragments)
		for ev := range events {
			frag := divider.Fragment{Text: ev.Text, Record: ev.Record}
			select {
			case fragments <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()

	div := divider.New(c.cfg.dividerOpts...)
	outputs := c.chain.Run(ctx, div.Process(ctx, fragments))

	var fullResponse strings.Builder
	spoke := false
	for ev := range outputs {
		if ev.Record != nil {
			rec := ev.Record
			if rec["type"] == "tool_call_status" {
				rec["name"] = c.cfg.char.Name
			}
			c.sendRecord(ctx, rec)
			continue
		}
		fullResponse.WriteString(ev.Output.DisplayText.Text)
		if err := t.orch.Speak(ctx, *ev.Output); err != nil {
			slog.Warn("sentence dropped", "turn", t.marker, "error", err)
			continue
		}
		spoke = true
	}
	c.cfg.metrics.ChatDuration.Record(ctx, time.Since(chatStart).Seconds())

	if ctx.Err() != nil {
		slog.Info("conversation turn cancelled", "turn", t.marker)
		return
	}

	c.finalize(ctx, t, spoke)

	if full := fullResponse.String(); full != "" && !opts.skipHistory && historyUID != "" {
		c.persist(ctx, historyUID, history.Message{
			Role:    history.RoleAI,
			Content: full,
			Name:    c.cfg.char.Name,
			Avatar:  c.cfg.char.Avatar,
		})
	}
	slog.Info("conversation turn completed", "turn", t.marker)
}

// finalize drains synthesis, then walks the end-of-turn handshake:
// backend-synth-complete, playback acknowledgement, force-new-message and
// conversation-chain-end.
func (c *Controller) finalize(ctx context.Context, t *turn, spoke bool) {
	if err := t.orch.Finish(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("orchestrator finish failed", "turn", t.marker, "error", err)
	}

	if spoke {
		c.sendRecord(ctx, types.Record{"type": "backend-synth-complete"})
		if c.cfg.ack != nil {
			if err := c.cfg.ack(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("no playback completion ack", "turn", t.marker, "error", err)
			}
		}
	}

	c.sendRecord(ctx, types.Record{"type": "force-new-message"})
	c.sendRecord(ctx, types.Record{"type": "control", "text": "conversation-chain-end"})
}

// audioMessage wraps a payload with its wire type tag.
type audioMessage struct {
	Type string `json:"type"`
	*types.AudioPayload
}

func (c *Controller) sendPayload(ctx context.Context, p *types.AudioPayload) error {
	kind := "audio"
	switch {
	case p.MergeInfo != nil:
		kind = "merged"
	case p.IsSilent():
		kind = "silent"
	}
	c.cfg.metrics.RecordPayload(ctx, kind)
	return c.send(ctx, audioMessage{Type: "audio", AudioPayload: p})
}

func (c *Controller) sendRecord(ctx context.Context, rec types.Record) {
	if err := c.send(ctx, rec); err != nil && ctx.Err() == nil {
		slog.Warn("client send failed", "type", rec["type"], "error", err)
	}
}

func (c *Controller) persist(ctx context.Context, historyUID string, msg history.Message) {
	if c.cfg.store == nil {
		return
	}
	err := c.cfg.store.Append(ctx, c.cfg.char.ConfUID, historyUID, msg)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("history append failed", "history", historyUID, "error", err)
	}
}

// noiseTranscripts are single-token transcription artifacts that never
// warrant a turn.
var noiseTranscripts = map[string]struct{}{
	"。": {}, ".": {}, "，": {}, ",": {}, "!": {}, "?": {},
	"嗯": {}, "啊": {}, "哦": {}, "呃": {},
}

func isNoise(text string) bool {
	_, ok := noiseTranscripts[text]
	return ok
}
