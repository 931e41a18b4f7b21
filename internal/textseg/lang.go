package textseg

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// supportedLanguages is the whitelist for the statistical segmentation
// method, keyed by ISO 639-1 code. Anything else falls back to the regex
// method.
var supportedLanguages = map[string]bool{
	"am": true, "ar": true, "bg": true, "da": true, "de": true, "el": true,
	"en": true, "es": true, "fa": true, "fr": true, "hi": true, "hy": true,
	"it": true, "ja": true, "kk": true, "mr": true, "my": true, "nl": true,
	"pl": true, "ru": true, "sk": true, "ur": true, "zh": true,
}

// extraTerminators maps a language to terminal characters beyond the common
// set, e.g. the Devanagari danda or the Armenian full stop.
var extraTerminators = map[string]string{
	"hi": "।॥",
	"mr": "।॥",
	"ar": "؟۔",
	"fa": "؟۔",
	"ur": "؟۔",
	"my": "။",
	"am": "።",
	"hy": "։",
	"el": ";",
}

// closingTrailers are characters that attach to the sentence they follow
// when they appear directly after terminal punctuation.
const closingTrailers = `"'”’」』）)]`

// DetectLanguage returns the ISO 639-1 code of the detected language when it
// is in the statistical whitelist, or "" otherwise.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || !supportedLanguages[code] {
		return ""
	}
	return code
}

// SegmentStatistical splits text into sentences using language-aware
// boundary rules. When the detected language is outside the whitelist, or
// the text defeats the rules entirely, it falls back to SegmentRegex.
// All but the last sentence are complete by construction; the last is kept
// only when it ends in terminal punctuation, otherwise it is returned as
// the remainder.
func SegmentStatistical(text string) ([]string, string) {
	if strings.TrimSpace(text) == "" {
		return nil, ""
	}

	lang := DetectLanguage(text)
	if lang == "" {
		slog.Debug("language unsupported by statistical segmenter, using regex", "text_len", len(text))
		return SegmentRegex(text)
	}

	terminators := endPunctuations + extraTerminators[lang]
	runes := []rune(strings.TrimLeft(text, " \t\r\n"))

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !strings.ContainsRune(terminators, r) {
			continue
		}

		// A period between digits is a decimal point, not a boundary.
		if r == '.' && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}

		// Consume the whole punctuation run, then any closing quotes or
		// brackets that belong to this sentence.
		for i+1 < len(runes) && runes[i+1] == r {
			i++
		}
		for i+1 < len(runes) && strings.ContainsRune(closingTrailers, runes[i+1]) {
			i++
		}

		candidate := strings.TrimSpace(string(runes[start : i+1]))
		if EndsWithAbbreviation(candidate) {
			continue
		}
		if candidate != "" {
			sentences = append(sentences, candidate)
		}
		start = i + 1
	}

	remaining := ""
	if start < len(runes) {
		// Keep trailing whitespace: the divider appends the next fragment
		// to this remainder verbatim.
		remaining = strings.TrimLeft(string(runes[start:]), " \t\r\n")
	}

	// The tail may still be complete (a terminator outside the common set
	// consumed by the loop but not recognized as one by IsEndPunct would
	// have been kept); classify it the way the streaming divider expects.
	if trimmed := strings.TrimSpace(remaining); trimmed != "" && IsCompleteSentence(trimmed) {
		sentences = append(sentences, trimmed)
		remaining = ""
	}
	return sentences, remaining
}
