// Package textseg implements the low-level text analysis used by the
// sentence divider: sentence-boundary detection, markdown-aware comma
// splitting, LaTeX span protection, and post-processing of segmented output.
//
// Two segmentation methods are offered. The regex method is a greedy scan
// for terminal punctuation with an abbreviation guard. The statistical
// method detects the text's language and applies per-language boundary
// rules for a fixed whitelist of languages, falling back to the regex
// method for everything else.
package textseg

import (
	"strings"
	"unicode"
)

// Commas lists the comma characters recognized by the first-sentence
// splitter, in match-priority order.
var Commas = []string{
	",", "،", "，", "、", "፣", "၊", ";", "΄", "‛", "।", "﹐", "꓾", "⹁", "︐", "﹑", "､",
}

// endPunctuations are the sentence-terminal characters. Runs of the same
// character (e.g. "..." or "。。。") are consumed as a single boundary.
const endPunctuations = ".!?。！？"

// Abbreviations are suffixes that look like sentence boundaries but are not.
var Abbreviations = []string{
	"Mr.", "Mrs.", "Dr.", "Prof.", "Inc.", "Ltd.", "Jr.", "Sr.",
	"e.g.", "i.e.", "vs.", "St.", "Rd.",
}

// IsEndPunct reports whether r is a sentence-terminal character.
func IsEndPunct(r rune) bool {
	return strings.ContainsRune(endPunctuations, r)
}

// ContainsEndPunctuation reports whether text contains any sentence-terminal
// character.
func ContainsEndPunctuation(text string) bool {
	return strings.ContainsAny(text, endPunctuations)
}

// ContainsComma reports whether text contains any recognized comma.
func ContainsComma(text string) bool {
	for _, c := range Commas {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

// EndsWithAbbreviation reports whether text ends with a known abbreviation.
func EndsWithAbbreviation(text string) bool {
	for _, abbrev := range Abbreviations {
		if strings.HasSuffix(text, abbrev) {
			return true
		}
	}
	return false
}

// IsCompleteSentence reports whether text ends with terminal punctuation
// that is not part of a known abbreviation.
func IsCompleteSentence(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if EndsWithAbbreviation(text) {
		return false
	}
	r, _ := lastRune(text)
	return IsEndPunct(r)
}

// SegmentRegex splits text into complete sentences at terminal punctuation,
// returning the sentences and the trailing incomplete remainder. Runs of the
// same terminal character are consumed together, so an ellipsis ends exactly
// one sentence. A boundary that would leave the sentence ending in a known
// abbreviation is not taken.
//
// The remainder keeps its trailing whitespace: it is carried back into the
// divider's buffer and the next fragment is appended verbatim.
func SegmentRegex(text string) ([]string, string) {
	var sentences []string
	runes := []rune(strings.TrimLeft(text, " \t\r\n"))

	start := 0
	for i := 0; i < len(runes); {
		if !IsEndPunct(runes[i]) {
			i++
			continue
		}
		// Consume the whole punctuation run.
		j := i
		for j+1 < len(runes) && runes[j+1] == runes[i] {
			j++
		}
		candidate := strings.TrimSpace(string(runes[start : j+1]))
		if EndsWithAbbreviation(candidate) {
			i = j + 1
			continue
		}
		if candidate != "" {
			sentences = append(sentences, candidate)
		}
		start = j + 1
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
		i = start
	}

	if start >= len(runes) {
		return sentences, ""
	}
	return sentences, string(runes[start:])
}

func lastRune(s string) (rune, bool) {
	var r rune
	found := false
	for _, c := range s {
		r = c
		found = true
	}
	return r, found
}
