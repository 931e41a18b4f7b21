// Package wakeword gates voice input on configured wake words and detects
// stop words used to interrupt the avatar mid-playback.
//
// Matching is case-insensitive. Stop-word detection is the looser of the
// two: any occurrence of a stop word inside the utterance triggers. Wake
// words prefer a prefix match but also accept the word anywhere in the
// utterance; the word and any separators following it are stripped to
// produce the prompt text.
//
// With fuzzy matching enabled, Han text is compared by its pinyin reading
// so homophone mis-transcriptions ("小路" for "小鹿") still match, and
// Latin-script words fall back to Double Metaphone plus Jaro-Winkler
// similarity.
package wakeword

import (
	"regexp"
	"strings"
)

// Config is the per-request wake- or stop-word configuration carried on
// inbound client messages.
type Config struct {
	Enabled              bool     `json:"enabled" yaml:"enabled"`
	Words                []string `json:"words" yaml:"words"`
	FuzzyPinyin          bool     `json:"fuzzy_pinyin,omitempty" yaml:"fuzzy_pinyin,omitempty"`
	VoicePromptInjection bool     `json:"voice_prompt_injection,omitempty" yaml:"voice_prompt_injection,omitempty"`
}

// Active reports whether this config should be consulted at all.
func (c *Config) Active() bool {
	return c != nil && c.Enabled && len(c.Words) > 0
}

// StopResult is the outcome of a stop-word check.
type StopResult struct {
	Matched bool
	Word    string
}

// WakeResult is the outcome of a wake-word check. CleanText is the
// utterance with the wake word and trailing separators removed; when no
// word matched it is the original text.
type WakeResult struct {
	Matched   bool
	Word      string
	CleanText string
}

// separatorPrefixRe strips punctuation between a wake word and the actual
// question ("小鹿，今天天气怎么样" keeps only the question).
var separatorPrefixRe = regexp.MustCompile(`^[,，、。.!！?？\s]+`)

// Matcher checks utterances against wake- and stop-word lists.
// The zero value is ready to use.
type Matcher struct{}

// New returns a Matcher.
func New() *Matcher { return &Matcher{} }

// CheckStop reports whether text contains any of the configured stop
// words. Fuzzy matching compares pinyin readings when enabled.
func (m *Matcher) CheckStop(text string, cfg *Config) StopResult {
	if !cfg.Active() {
		return StopResult{}
	}
	normalized := strings.ToLower(strings.TrimSpace(text))

	var textPinyin string
	if cfg.FuzzyPinyin {
		textPinyin = toPinyin(normalized)
	}

	for _, word := range cfg.Words {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			continue
		}
		if strings.Contains(normalized, w) {
			return StopResult{Matched: true, Word: word}
		}
		if cfg.FuzzyPinyin {
			if strings.Contains(textPinyin, toPinyin(w)) {
				return StopResult{Matched: true, Word: word}
			}
			if isLatinWord(w) && phoneticContains(normalized, w) {
				return StopResult{Matched: true, Word: word}
			}
		}
	}
	return StopResult{}
}

// CheckWake looks for a configured wake word in text. On a match the word
// and any separators directly after it are stripped from the front of the
// remaining utterance.
func (m *Matcher) CheckWake(text string, cfg *Config) WakeResult {
	if !cfg.Active() {
		return WakeResult{CleanText: text}
	}
	normalized := strings.ToLower(strings.TrimSpace(text))
	trimmed := strings.TrimSpace(text)

	for _, word := range cfg.Words {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			continue
		}

		if idx := strings.Index(normalized, w); idx >= 0 {
			return WakeResult{
				Matched:   true,
				Word:      word,
				CleanText: stripAfter(trimmed, idx+len(w)),
			}
		}

		if cfg.FuzzyPinyin {
			if res, ok := m.wakeByPinyin(trimmed, normalized, word, w); ok {
				return res
			}
			if isLatinWord(w) && phoneticContains(normalized, w) {
				// A phonetic hit gives no reliable offset in the original
				// text, so treat the whole utterance as the wake word.
				return WakeResult{Matched: true, Word: word, CleanText: ""}
			}
		}
	}
	return WakeResult{CleanText: text}
}

// wakeByPinyin locates the wake word by pinyin reading and maps the match
// back to rune positions in the original text so the residue can be cut.
func (m *Matcher) wakeByPinyin(text, normalized, word, w string) (WakeResult, bool) {
	start, end, ok := findByPinyin(normalized, toPinyin(w))
	if !ok {
		return WakeResult{}, false
	}
	runes := []rune(text)
	if end > len(runes) {
		end = len(runes)
	}
	matched := string(runes[start:end])
	rest := strings.TrimSpace(string(runes[end:]))
	rest = strings.TrimSpace(separatorPrefixRe.ReplaceAllString(rest, ""))
	return WakeResult{
		Matched:   true,
		Word:      word + "(~" + matched + ")",
		CleanText: rest,
	}, true
}

// stripAfter removes everything up to byte offset off plus any separator
// run that follows.
func stripAfter(text string, off int) string {
	if off > len(text) {
		off = len(text)
	}
	rest := strings.TrimSpace(text[off:])
	return strings.TrimSpace(separatorPrefixRe.ReplaceAllString(rest, ""))
}

func isLatinWord(w string) bool {
	for _, r := range w {
		if r >= 0x80 {
			return false
		}
	}
	return strings.ContainsFunc(w, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
}
