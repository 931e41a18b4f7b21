package textseg

import (
	"regexp"
	"strings"
)

var (
	enumeratorAfterRe = regexp.MustCompile(`^\s*\d+[.)、）]`)
	trailingDigitsRe  = regexp.MustCompile(`\d+$`)
	leadingDigitRe    = regexp.MustCompile(`^\d`)
)

// SplitAtFirstComma splits text at the first comma that is safe to split at,
// returning the head (comma removed), the remainder, and whether a split was
// made. It is used to shorten the time to first audio: the head becomes the
// turn's first sentence.
//
// A comma is not safe when it lies inside a markdown emphasis or code span,
// on a heading line, or inside a digit sequence like "1, 2, 3". A comma
// directly followed by a list enumerator is split regardless, so the
// enumerator binds to the next sentence.
func SplitAtFirstComma(text string) (head, rest string, ok bool) {
	if text == "" {
		return "", "", false
	}
	for _, comma := range Commas {
		offset := 0
		for {
			rel := strings.Index(text[offset:], comma)
			if rel < 0 {
				break
			}
			pos := offset + rel
			if !shouldSkipComma(text, pos) {
				head = strings.TrimSpace(text[:pos])
				rest = strings.TrimSpace(text[pos+len(comma):])
				return head, rest, true
			}
			offset = pos + len(comma)
		}
	}
	return "", "", false
}

// shouldSkipComma reports whether the comma at byte offset pos must not be
// used as a split point.
func shouldSkipComma(text string, pos int) bool {
	before := text[:pos]

	if insideMarkdownSpan(before) {
		return true
	}

	// Heading line: the comma's line starts with '#'.
	lineStart := strings.LastIndexByte(before, '\n') + 1
	if strings.HasPrefix(strings.TrimSpace(before[lineStart:]), "#") {
		return true
	}

	after := strings.TrimSpace(runeWindow(text[pos+1:], 10, false))

	// A list enumerator right after the comma means the split is wanted:
	// the enumerator starts the next sentence. The class excludes commas
	// and whitespace so the "2, " of a digit list never matches.
	if enumeratorAfterRe.MatchString(after) {
		return false
	}

	// Digit sequences like "1, 2, 3" stay intact: digits on both sides of
	// the comma mean it is part of the list.
	beforeWindow := strings.TrimSpace(runeWindow(before, 10, true))
	if trailingDigitsRe.MatchString(beforeWindow) && leadingDigitRe.MatchString(after) {
		return true
	}

	return false
}

// insideMarkdownSpan reports whether the end of before lies inside a
// markdown emphasis or code span, judged by marker parity.
func insideMarkdownSpan(before string) bool {
	boldStars := strings.Count(before, "**")
	boldUnderscores := strings.Count(before, "__")
	if boldStars%2 == 1 || boldUnderscores%2 == 1 {
		return true
	}

	singleStars := strings.Count(before, "*") - boldStars*2
	singleUnderscores := strings.Count(before, "_") - boldUnderscores*2
	if singleStars%2 == 1 || singleUnderscores%2 == 1 {
		return true
	}

	backticks := strings.Count(before, "`")
	tripleBackticks := strings.Count(before, "```")
	if (backticks-tripleBackticks*3)%2 == 1 || tripleBackticks%2 == 1 {
		return true
	}

	return false
}

// runeWindow returns up to n runes from the start (or the end, when fromEnd
// is true) of s.
func runeWindow(s string, n int, fromEnd bool) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if fromEnd {
		return string(runes[len(runes)-n:])
	}
	return string(runes[:n])
}
