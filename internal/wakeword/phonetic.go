package wakeword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// phoneticThreshold is the minimum Jaro-Winkler score for a token that
// already shares a Double Metaphone code with the word.
const phoneticThreshold = 0.70

// phoneticContains reports whether any token of text sounds like word.
// Tokens are first filtered by Double Metaphone code overlap, then ranked
// by Jaro-Winkler similarity against the word.
func phoneticContains(text, word string) bool {
	wp, ws := matchr.DoubleMetaphone(word)
	for _, token := range strings.Fields(text) {
		tp, ts := matchr.DoubleMetaphone(token)
		if !codesOverlap(wp, ws, tp, ts) {
			continue
		}
		if matchr.JaroWinkler(token, word, false) >= phoneticThreshold {
			return true
		}
	}
	return false
}

func codesOverlap(ap, as, bp, bs string) bool {
	if ap != "" && (ap == bp || ap == bs) {
		return true
	}
	if as != "" && (as == bp || as == bs) {
		return true
	}
	return false
}
