package ttstext

import (
	"regexp"
	"strings"
)

// codeBlockPhrase is spoken in place of a fenced code block.
const codeBlockPhrase = "这段代码"

var (
	fencedCodeRe     = regexp.MustCompile("(?s)```.*?```")
	headingMarkRe    = regexp.MustCompile(`(?m)^#+\s+`)
	boldStarsRe      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderscoreRe = regexp.MustCompile(`__([^_]+)__`)
	italicStarRe     = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderRe    = regexp.MustCompile(`_([^_\n]+)_`)
	inlineCodeRe     = regexp.MustCompile("`([^`]+)`")
	linkRe           = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	bulletMarkRe     = regexp.MustCompile(`(?m)^[*\-]\s+`)
	orderedMarkRe    = regexp.MustCompile(`(?m)^\d+\.\s+`)
)

// stripMarkdown removes markdown syntax while keeping the content: emphasis
// and code markers unwrap, links keep their text, list markers and heading
// marks vanish, and fenced code blocks are replaced by a spoken phrase.
func stripMarkdown(text string) string {
	out := fencedCodeRe.ReplaceAllString(text, codeBlockPhrase)
	out = headingMarkRe.ReplaceAllString(out, "")
	out = boldStarsRe.ReplaceAllString(out, "$1")
	out = boldUnderscoreRe.ReplaceAllString(out, "$1")
	out = italicStarRe.ReplaceAllString(out, "$1")
	out = italicUnderRe.ReplaceAllString(out, "$1")
	out = inlineCodeRe.ReplaceAllString(out, "$1")
	out = linkRe.ReplaceAllString(out, "$1")
	out = bulletMarkRe.ReplaceAllString(out, "")
	out = orderedMarkRe.ReplaceAllString(out, "")
	return out
}

var asteriskSpanRe = regexp.MustCompile(`\*+[^*]*\*+`)

// stripAsteriskSpans removes any remaining asterisk-delimited spans together
// with their content and collapses the surrounding whitespace.
func stripAsteriskSpans(text string) string {
	out := asteriskSpanRe.ReplaceAllString(text, "")
	return collapseWhitespace(out)
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}
