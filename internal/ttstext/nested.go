package ttstext

import "strings"

// stripNested removes every span enclosed by the given bracket pair,
// including nested spans, by tracking depth per character. Regex cannot do
// this: "[[nested] span]" must disappear entirely. Unbalanced closers are
// ignored. The survivors get their whitespace collapsed.
func stripNested(text string, open, close rune) string {
	var b strings.Builder
	b.Grow(len(text))

	depth := 0
	for _, r := range text {
		switch r {
		case open:
			depth++
		case close:
			if depth > 0 {
				depth--
			} else {
				b.WriteRune(r)
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return collapseWhitespace(b.String())
}
