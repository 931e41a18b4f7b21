package ttstext

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// formulaPhrases are the spoken stand-ins for formulas that cannot be read
// as a simple variable name. One is picked at random so repeated formulas
// do not sound robotic.
var formulaPhrases = []string{"这个公式", "这个式子", "这个表达式"}

var (
	latexBlockFormulaRe  = regexp.MustCompile(`\$\$([^$]+)\$\$`)
	latexInlineFormulaRe = regexp.MustCompile(`\$([^$\n]+)\$`)

	latexTextCmdRe   = regexp.MustCompile(`\\text\{([^}]*)\}`)
	latexSubBraceRe  = regexp.MustCompile(`_\{([^}]*)\}`)
	latexSubCharRe   = regexp.MustCompile(`_([a-zA-Z0-9])`)
	latexSupBraceRe  = regexp.MustCompile(`\^\{[^}]*\}`)
	latexSupCharRe   = regexp.MustCompile(`\^[a-zA-Z0-9]`)
	latexCommandRe   = regexp.MustCompile(`\\[a-zA-Z]+`)
	latexResidueRe   = regexp.MustCompile(`[{}\\,;:\s]+`)
	latexSpeakableRe = regexp.MustCompile(`[a-zA-Z0-9α-ωΑ-Ω]`)
)

// greekGlyphs maps LaTeX Greek-letter commands to their glyphs so "$\alpha$"
// reads as the letter instead of a canned phrase.
var greekGlyphs = map[string]string{
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ",
	"epsilon": "ε", "zeta": "ζ", "eta": "η", "theta": "θ",
	"iota": "ι", "kappa": "κ", "lambda": "λ", "mu": "μ",
	"nu": "ν", "xi": "ξ", "pi": "π", "rho": "ρ",
	"sigma": "σ", "tau": "τ", "upsilon": "υ", "phi": "φ",
	"chi": "χ", "psi": "ψ", "omega": "ω",
	"Gamma": "Γ", "Delta": "Δ", "Theta": "Θ", "Lambda": "Λ",
	"Xi": "Ξ", "Pi": "Π", "Sigma": "Σ", "Phi": "Φ",
	"Psi": "Ψ", "Omega": "Ω",
}

// replaceLaTeX replaces block and inline formulas with speakable text.
// Inline formulas that reduce to a short identifier are spoken literally;
// everything else becomes a generic phrase.
func replaceLaTeX(text string) string {
	out := latexBlockFormulaRe.ReplaceAllStringFunc(text, func(string) string {
		return formulaPhrases[rand.IntN(len(formulaPhrases))]
	})
	out = latexInlineFormulaRe.ReplaceAllStringFunc(out, func(m string) string {
		inner := latexInlineFormulaRe.FindStringSubmatch(m)[1]
		if v, ok := extractSimpleVariable(inner); ok {
			return v
		}
		return formulaPhrases[rand.IntN(len(formulaPhrases))]
	})
	return out
}

type greekRule struct {
	re    *regexp.Regexp
	cmd   string
	glyph string
}

// greekRules are compiled once; each matches the command only when it is not
// followed by another letter, so \phi does not eat the head of \phantom.
var greekRules = func() []greekRule {
	rules := make([]greekRule, 0, len(greekGlyphs))
	for cmd, glyph := range greekGlyphs {
		rules = append(rules, greekRule{
			re:    regexp.MustCompile(`\\` + cmd + `(?:[^a-zA-Z]|$)`),
			cmd:   cmd,
			glyph: glyph,
		})
	}
	return rules
}()

// extractSimpleVariable tries to reduce the inner LaTeX of an inline formula
// to a readable variable name: Greek commands become glyphs, \text{} unwraps,
// subscripts transliterate to a spoken "下标" form, superscripts vanish.
// Anything still containing commands, or longer than 15 visible characters,
// is rejected.
func extractSimpleVariable(inner string) (string, bool) {
	s := inner

	for _, rule := range greekRules {
		s = rule.re.ReplaceAllStringFunc(s, func(m string) string {
			return rule.glyph + strings.TrimPrefix(m, `\`+rule.cmd)
		})
	}

	s = latexTextCmdRe.ReplaceAllString(s, "$1")
	s = latexSubBraceRe.ReplaceAllString(s, "下标$1")
	s = latexSubCharRe.ReplaceAllString(s, "下标$1")
	s = latexSupBraceRe.ReplaceAllString(s, "")
	s = latexSupCharRe.ReplaceAllString(s, "")
	s = latexCommandRe.ReplaceAllString(s, "")
	s = latexResidueRe.ReplaceAllString(s, "")

	if s == "" || len([]rune(s)) > 15 {
		return "", false
	}
	if !latexSpeakableRe.MatchString(s) {
		return "", false
	}
	return s, true
}
