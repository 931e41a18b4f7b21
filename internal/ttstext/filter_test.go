package ttstext_test

import (
	"strings"
	"testing"

	"github.com/lunavoice/lunavoice/internal/ttstext"
)

func TestApplyHeadings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"heading speaks its content", "## Quick Summary", "Quick Summary"},
		{"empty heading speaks nothing", "###", ""},
		{"hash only with spaces", "#   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ttstext.Apply(tc.in, ttstext.DefaultOptions()); got != tc.want {
				t.Errorf("Apply(%q): want %q, got %q", tc.in, tc.want, got)
			}
		})
	}
}

func TestApplyMarkdown(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bold unwraps", "this is **important** stuff", "this is important stuff"},
		{"inline code unwraps", "run `make test` now", "run make test now"},
		{"link keeps text", "see [the docs](https://example.com) here", "see the docs here"},
		{"list marker removed", "- first item", "first item"},
		{"ordered marker removed", "1. first item", "first item"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ttstext.Apply(tc.in, ttstext.DefaultOptions()); got != tc.want {
				t.Errorf("Apply(%q): want %q, got %q", tc.in, tc.want, got)
			}
		})
	}
}

func TestApplyFencedCodeBlock(t *testing.T) {
	t.Parallel()

	got := ttstext.Apply("look:\n```go\nfmt.Println(1)\n```\ndone", ttstext.DefaultOptions())
	if !strings.Contains(got, "这段代码") {
		t.Errorf("fenced block not replaced by phrase: %q", got)
	}
	if strings.Contains(got, "Println") {
		t.Errorf("code content leaked into speech text: %q", got)
	}
}

func TestApplyLaTeX(t *testing.T) {
	t.Parallel()

	phrases := []string{"这个公式", "这个式子", "这个表达式"}

	t.Run("simple variable is spoken", func(t *testing.T) {
		got := ttstext.Apply("where $x$ grows", ttstext.DefaultOptions())
		if got != "where x grows" {
			t.Errorf("want %q, got %q", "where x grows", got)
		}
	})

	t.Run("greek letter becomes glyph", func(t *testing.T) {
		got := ttstext.Apply(`the angle $\alpha$ here`, ttstext.DefaultOptions())
		if got != "the angle α here" {
			t.Errorf("want %q, got %q", "the angle α here", got)
		}
	})

	t.Run("subscript transliterates", func(t *testing.T) {
		got := ttstext.Apply("value $x_i$ rises", ttstext.DefaultOptions())
		if got != "value x下标i rises" {
			t.Errorf("want %q, got %q", "value x下标i rises", got)
		}
	})

	t.Run("block formula becomes a phrase", func(t *testing.T) {
		got := ttstext.Apply("consider $$\\int_0^1 f(x) dx$$ now", ttstext.DefaultOptions())
		found := false
		for _, p := range phrases {
			if strings.Contains(got, p) {
				found = true
			}
		}
		if !found {
			t.Errorf("block formula not replaced by phrase: %q", got)
		}
		if strings.Contains(got, "int_0") {
			t.Errorf("formula body leaked: %q", got)
		}
	})

	t.Run("long inline becomes a phrase", func(t *testing.T) {
		got := ttstext.Apply(`so $\frac{a+b+c+d+e+f}{g+h+i+j+k+l}$ converges`, ttstext.DefaultOptions())
		found := false
		for _, p := range phrases {
			if strings.Contains(got, p) {
				found = true
			}
		}
		if !found {
			t.Errorf("complex formula not replaced by phrase: %q", got)
		}
	})
}

func TestApplyNestedSpans(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"nested brackets drop entirely", "keep [[nested] span] this", "keep this"},
		{"parentheses drop", "say (aside) this", "say this"},
		{"angle brackets drop", "hello <giggle> there", "hello there"},
		{"unbalanced closer ignored", "odd ] text", "odd ] text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ttstext.Apply(tc.in, ttstext.DefaultOptions()); got != tc.want {
				t.Errorf("Apply(%q): want %q, got %q", tc.in, tc.want, got)
			}
		})
	}
}

func TestApplyFlagsAreIndependent(t *testing.T) {
	t.Parallel()

	opts := ttstext.Options{IgnoreParentheses: true}
	got := ttstext.Apply("keep [this] drop (that)", opts)
	if got != "keep [this] drop" {
		t.Errorf("want %q, got %q", "keep [this] drop", got)
	}
}

func TestApplyRemovesEmoji(t *testing.T) {
	t.Parallel()

	got := ttstext.Apply("nice day 🌞 today", ttstext.DefaultOptions())
	if strings.Contains(got, "🌞") {
		t.Errorf("emoji survived: %q", got)
	}
	if !strings.Contains(got, "nice day") || !strings.Contains(got, "today") {
		t.Errorf("surrounding text damaged: %q", got)
	}
}

func TestTrimTrailingPunct(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Hi there.", "Hi there"},
		{"真的吗？！", "真的吗"},
		{"stacked...!?", "stacked"},
		{"no punct", "no punct"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ttstext.TrimTrailingPunct(tc.in); got != tc.want {
			t.Errorf("TrimTrailingPunct(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}
