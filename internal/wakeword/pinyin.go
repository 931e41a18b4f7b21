package wakeword

import (
	"strings"

	"github.com/mozillazg/go-pinyin"
)

var pinyinArgs = pinyin.NewArgs()

// runePinyin returns the pinyin reading of a single rune, or the rune
// itself when it has no reading (Latin letters, digits, punctuation).
func runePinyin(r rune) string {
	readings := pinyin.SinglePinyin(r, pinyinArgs)
	if len(readings) == 0 {
		return string(r)
	}
	return readings[0]
}

// toPinyin converts text to its concatenated pinyin reading. Runes without
// a reading pass through unchanged, matching the behavior expected for
// mixed Han and Latin utterances.
func toPinyin(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		b.WriteString(runePinyin(r))
	}
	return b.String()
}

// findByPinyin locates wordPinyin inside the pinyin reading of text and
// maps the match back to rune positions [start, end) in text. It walks the
// text rune by rune, accumulating reading lengths, the same way the match
// offset was produced.
func findByPinyin(text, wordPinyin string) (start, end int, ok bool) {
	if wordPinyin == "" {
		return 0, 0, false
	}
	textPinyin := toPinyin(text)
	idx := strings.Index(textPinyin, wordPinyin)
	if idx < 0 {
		return 0, 0, false
	}

	runes := []rune(text)

	accumulated := 0
	start = len(runes)
	for i, r := range runes {
		if accumulated >= idx {
			start = i
			break
		}
		accumulated += len(runePinyin(r))
	}

	end = start
	consumed := 0
	for i := start; i < len(runes); i++ {
		consumed += len(runePinyin(runes[i]))
		if consumed >= len(wordPinyin) {
			end = i + 1
			break
		}
	}
	if end == start {
		end = len(runes)
	}
	return start, end, true
}
