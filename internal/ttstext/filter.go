// Package ttstext projects display text into speech-optimized text: the
// display keeps its Markdown and LaTeX verbatim for rendering, while the
// projection replaces formulas with speakable phrases, strips markup and
// decorative spans, and trims punctuation the synthesizer would stumble on.
package ttstext

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options selects the optional projection steps. The zero value disables
// everything optional; DefaultOptions matches the shipped configuration.
type Options struct {
	// RemoveSpecialChar keeps only letters, numbers, punctuation and
	// whitespace after NFKC normalization.
	RemoveSpecialChar bool

	// IgnoreBrackets drops content enclosed in square brackets.
	IgnoreBrackets bool

	// IgnoreParentheses drops content enclosed in parentheses.
	IgnoreParentheses bool

	// IgnoreAsterisks drops content enclosed in asterisk spans.
	IgnoreAsterisks bool

	// IgnoreAngleBrackets drops content enclosed in angle brackets.
	IgnoreAngleBrackets bool
}

// DefaultOptions enables every projection step.
func DefaultOptions() Options {
	return Options{
		RemoveSpecialChar:   true,
		IgnoreBrackets:      true,
		IgnoreParentheses:   true,
		IgnoreAsterisks:     true,
		IgnoreAngleBrackets: true,
	}
}

var headingRe = regexp.MustCompile(`^#+\s*(.*)$`)

// Apply computes the speech text for a display text. A heading speaks only
// its content; an empty heading speaks nothing.
func Apply(text string, opts Options) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "#") {
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			trimmed = strings.TrimSpace(m[1])
		} else {
			trimmed = ""
		}
		if trimmed == "" {
			return ""
		}
	}

	out := replaceLaTeX(trimmed)
	out = stripMarkdown(out)

	if opts.IgnoreAsterisks {
		out = stripAsteriskSpans(out)
	}
	if opts.IgnoreBrackets {
		out = stripNested(out, '[', ']')
	}
	if opts.IgnoreParentheses {
		out = stripNested(out, '(', ')')
	}
	if opts.IgnoreAngleBrackets {
		out = stripNested(out, '<', '>')
	}
	if opts.RemoveSpecialChar {
		out = removeSpecialCharacters(out)
	}

	return TrimTrailingPunct(out)
}

// removeSpecialCharacters applies NFKC normalization and keeps only runes in
// the letter, number and punctuation categories plus whitespace. Emoji and
// other symbols disappear, which keeps them out of the synthesizer.
func removeSpecialCharacters(text string) string {
	normalized := norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// trailingPunct are the sentence-final characters stripped from speech text;
// synthesizers pause on their own, and stray punctuation is read aloud by
// some voices.
const trailingPunct = "。，、；：.,;:！？!?"

// TrimTrailingPunct repeatedly strips trailing sentence punctuation.
func TrimTrailingPunct(text string) string {
	stripped := strings.TrimRightFunc(strings.TrimSpace(text), func(r rune) bool {
		return strings.ContainsRune(trailingPunct, r)
	})
	return strings.TrimSpace(stripped)
}
