package textseg

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	latexBlockRe = regexp.MustCompile(`\$\$[\s\S]+?\$\$`)

	// Inline formulas never cross line breaks. Block formulas are replaced
	// first, so no "$$" pair survives for this pattern to mismatch.
	latexInlineRe = regexp.MustCompile(`\$[^$\n]+?\$`)
)

// LaTeXGuard replaces LaTeX formulas with opaque placeholders so punctuation
// inside a formula cannot be mistaken for a sentence boundary, and restores
// them in the segmented output. A guard's placeholders are unique within one
// Protect/Restore cycle.
type LaTeXGuard struct {
	placeholders []placeholder
}

type placeholder struct {
	key      string
	original string
}

// Protect substitutes block ($$…$$) and inline ($…$) formulas in text with
// placeholders and remembers the originals.
func (g *LaTeXGuard) Protect(text string) string {
	protected := latexBlockRe.ReplaceAllStringFunc(text, func(m string) string {
		key := fmt.Sprintf("__LATEX_BLOCK_%d__", len(g.placeholders))
		g.placeholders = append(g.placeholders, placeholder{key: key, original: m})
		return key
	})
	protected = latexInlineRe.ReplaceAllStringFunc(protected, func(m string) string {
		key := fmt.Sprintf("__LATEX_INLINE_%d__", len(g.placeholders))
		g.placeholders = append(g.placeholders, placeholder{key: key, original: m})
		return key
	})
	return protected
}

// Restore replaces any placeholders in s with their original formulas.
func (g *LaTeXGuard) Restore(s string) string {
	for _, p := range g.placeholders {
		s = strings.ReplaceAll(s, p.key, p.original)
	}
	return s
}

// RestoreAll applies Restore to every element of sentences in place and
// returns the slice.
func (g *LaTeXGuard) RestoreAll(sentences []string) []string {
	for i, s := range sentences {
		sentences[i] = g.Restore(s)
	}
	return sentences
}
