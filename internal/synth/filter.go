package synth

import (
	"regexp"
	"strings"
)

var (
	// emotionTagRe matches bracketed expression cues like "[neutral]" that
	// the model embeds in its output for the avatar, not for speech.
	emotionTagRe = regexp.MustCompile(`\[\w+\]`)

	// punctRe matches whitespace and sentence punctuation, both ASCII and
	// CJK fullwidth forms.
	punctRe = regexp.MustCompile(`[\s.,!?，。！？'"』」）】]+`)
)

// isHeading reports whether the text is a markdown heading. Headings are
// shown but never spoken.
func isHeading(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "#")
}

// isEmotionTagOnly reports whether s consists solely of bracketed emotion
// tags, with nothing left to show or speak.
func isEmotionTagOnly(s string) bool {
	if !strings.Contains(s, "[") {
		return false
	}
	return strings.TrimSpace(emotionTagRe.ReplaceAllString(s, "")) == ""
}

// stripEmotionTags removes embedded emotion tags, keeping the surrounding
// text untouched.
func stripEmotionTags(s string) string {
	return emotionTagRe.ReplaceAllString(s, "")
}

// dropHeadingLines removes heading lines from multi-line text so list or
// section headers inside one sentence unit are not read aloud.
func dropHeadingLines(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isPunctuationOnly reports whether s carries no speakable content.
func isPunctuationOnly(s string) bool {
	return punctRe.ReplaceAllString(s, "") == ""
}
