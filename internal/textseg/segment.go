package textseg

import (
	"regexp"
	"strings"
)

// Method selects a sentence segmentation strategy.
type Method string

const (
	// MethodRegex is the greedy terminal-punctuation scan.
	MethodRegex Method = "regex"

	// MethodStatistical is the language-aware segmenter with regex fallback.
	MethodStatistical Method = "statistical"
)

// IsValid reports whether m names a known segmentation method.
func (m Method) IsValid() bool {
	return m == MethodRegex || m == MethodStatistical
}

// Segment splits a single line of text into complete sentences plus an
// incomplete remainder using the given method. LaTeX formulas are replaced
// by placeholders around segmentation so their punctuation cannot create
// false boundaries.
func Segment(text string, method Method) ([]string, string) {
	var guard LaTeXGuard
	protected := guard.Protect(text)

	var sentences []string
	var remaining string
	if method == MethodStatistical {
		sentences, remaining = SegmentStatistical(protected)
	} else {
		sentences, remaining = SegmentRegex(protected)
	}

	sentences = guard.RestoreAll(sentences)
	remaining = guard.Restore(remaining)
	return sentences, remaining
}

// isolatedEnumeratorRe matches a sentence that consists solely of a list
// enumerator: "1.", "2)", "3）", "4、", "(5)", or a circled digit ①–⑳.
var isolatedEnumeratorRe = regexp.MustCompile(`^(\d+[.)）、]?|\(\d+\)|[\x{2460}-\x{2473}])$`)

// MergeIsolatedEnumerators joins sentences that are bare list enumerators
// with the sentence that follows them, so "1." / "First step" becomes
// "1. First step". A trailing enumerator with nothing after it is kept.
func MergeIsolatedEnumerators(sentences []string) []string {
	if len(sentences) == 0 {
		return sentences
	}

	merged := make([]string, 0, len(sentences))
	pending := ""
	for _, sentence := range sentences {
		stripped := strings.TrimSpace(sentence)
		switch {
		case isolatedEnumeratorRe.MatchString(stripped):
			pending = stripped + " "
		case pending != "":
			merged = append(merged, pending+stripped)
			pending = ""
		default:
			merged = append(merged, sentence)
		}
	}
	if pending != "" {
		merged = append(merged, strings.TrimSpace(pending))
	}
	return merged
}

// TrimTrailingCJKPunct removes one trailing "。" or "，" from the sentence.
// Latin terminal punctuation is kept: the client renders it, and the TTS
// projection strips it separately.
func TrimTrailingCJKPunct(s string) string {
	trimmed := strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(trimmed, "。") {
		return strings.TrimSuffix(trimmed, "。")
	}
	if strings.HasSuffix(trimmed, "，") {
		return strings.TrimSuffix(trimmed, "，")
	}
	return trimmed
}
