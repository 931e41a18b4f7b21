// Package types defines the shared types used across all Lunavoice packages.
//
// These types form the lingua franca between the sentence divider, the
// transformer chain, the synthesis orchestrator, and the websocket surface.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package types

// TagState describes where a tag boundary sits relative to its span.
type TagState int

const (
	// TagNone marks text that carries no tag context.
	TagNone TagState = iota

	// TagStart marks an opening tag boundary (`<tag>`).
	TagStart

	// TagInside marks text emitted while one or more tags are open.
	TagInside

	// TagEnd marks a closing tag boundary (`</tag>`).
	TagEnd

	// TagSelfClosing marks a self-contained tag (`<tag/>`).
	TagSelfClosing
)

// String returns the human-readable name of the tag state.
func (s TagState) String() string {
	switch s {
	case TagNone:
		return "NONE"
	case TagStart:
		return "START"
	case TagInside:
		return "INSIDE"
	case TagEnd:
		return "END"
	case TagSelfClosing:
		return "SELF_CLOSING"
	default:
		return "UNKNOWN"
	}
}

// TagInfo identifies a recognized tag boundary or context.
// Name is empty exactly when State is TagNone.
type TagInfo struct {
	// Name is the tag name without angle brackets (e.g., "think").
	Name string

	// State is the boundary kind this info represents.
	State TagState
}

// SentenceUnit is one segmented unit of model output together with its tag
// context. Units are produced by the sentence divider and consumed by the
// transformer chain.
type SentenceUnit struct {
	// Text is the segmented text. Empty for pure tag-boundary units.
	Text string

	// Tags lists the tag context, outermost first. A unit emitted outside
	// any tag carries a single TagInfo with State TagNone.
	Tags []TagInfo

	// TTSText is the speech-side text of a dual-stream <show>/<say> pair.
	// Only meaningful when HasTTSText is true.
	TTSText string

	// HasTTSText reports whether TTSText was produced by the dual-stream
	// grammar. It distinguishes "explicitly empty" from "not present".
	HasTTSText bool
}

// IsTagBoundary reports whether the unit is a pure tag boundary
// (an opening, closing or self-closing tag with no text of its own).
func (u SentenceUnit) IsTagBoundary() bool {
	for _, t := range u.Tags {
		if t.State == TagStart || t.State == TagEnd || t.State == TagSelfClosing {
			return true
		}
	}
	return false
}

// Record is an out-of-band control record interleaved with text in the model
// output stream (e.g., tool call status updates). Records pass through every
// pipeline stage untouched and in their original position.
type Record map[string]any

// DisplayText is the UI-facing text of one payload. Markdown and LaTeX are
// preserved verbatim; the client renders them.
type DisplayText struct {
	Text   string `json:"text"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Actions carries avatar cues extracted from the sentence text.
type Actions struct {
	// Expressions lists expression keywords in order of appearance.
	Expressions []string `json:"expressions,omitempty"`
}

// IsEmpty reports whether the action set carries no cues.
func (a Actions) IsEmpty() bool {
	return len(a.Expressions) == 0
}

// SentenceOutput is the transformer chain's output triplet for one sentence.
// An empty TTSText means the sentence yields a silent, display-only payload.
type SentenceOutput struct {
	DisplayText DisplayText
	TTSText     string
	Actions     Actions
}

// MergeInfo describes one sentence's slice of a merged synthesis round.
// It lets the client reveal each display fragment in sync with playback of
// the single merged audio file.
type MergeInfo struct {
	IsMerged           bool `json:"is_merged"`
	TotalSentences     int  `json:"total_sentences"`
	SentenceIndex      int  `json:"sentence_index"`
	SentenceDurationMS int  `json:"sentence_duration_ms"`
	TotalDurationMS    int  `json:"total_duration_ms"`

	// DelayBeforeShowMS is the playback offset of this sentence from the
	// start of the merged audio. Zero (and omitted) for the first sentence.
	DelayBeforeShowMS int `json:"delay_before_show_ms,omitempty"`
}

// AudioPayload is one client-bound audio message. A payload with Audio == ""
// and no volumes is a silent payload: the client shows the display text and
// plays nothing.
type AudioPayload struct {
	// Audio is the base64-encoded audio file content, or "" for silent
	// payloads and non-first merged sentences.
	Audio string `json:"audio,omitempty"`

	// Volumes is the 20 ms windowed RMS envelope used for mouth-sync.
	Volumes []float64 `json:"volumes"`

	// SliceLengthMS is the envelope window length in milliseconds.
	SliceLengthMS int `json:"slice_length"`

	DisplayText DisplayText `json:"display_text"`
	Actions     *Actions    `json:"actions,omitempty"`

	// Forwarded is false for payloads generated by this server's own
	// pipeline; group-chat style forwarding sets it true.
	Forwarded bool `json:"forwarded"`

	MergeInfo *MergeInfo `json:"merge_info,omitempty"`
}

// IsSilent reports whether the payload carries no audio to play.
func (p AudioPayload) IsSilent() bool {
	return p.Audio == "" && len(p.Volumes) == 0
}
