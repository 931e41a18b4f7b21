package textseg_test

import (
	"strings"
	"testing"

	"github.com/lunavoice/lunavoice/internal/textseg"
)

func TestSegmentRegex(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		in            string
		wantSentences []string
		wantRemaining string
	}{
		{
			name:          "two sentences and a tail",
			in:            "Hello world. How are you? I am",
			wantSentences: []string{"Hello world.", "How are you?"},
			wantRemaining: "I am",
		},
		{
			name:          "no boundary",
			in:            "still streaming",
			wantSentences: nil,
			wantRemaining: "still streaming",
		},
		{
			name:          "cjk punctuation",
			in:            "你好。今天天气不错！还在输",
			wantSentences: []string{"你好。", "今天天气不错！"},
			wantRemaining: "还在输",
		},
		{
			name:          "ellipsis consumed as one boundary",
			in:            "Wait... okay.",
			wantSentences: []string{"Wait...", "okay."},
			wantRemaining: "",
		},
		{
			name:          "abbreviation is not a boundary",
			in:            "Talk to Dr. Smith today. Then rest",
			wantSentences: []string{"Talk to Dr. Smith today."},
			wantRemaining: "Then rest",
		},
		{
			name:          "empty input",
			in:            "",
			wantSentences: nil,
			wantRemaining: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotSentences, gotRemaining := textseg.SegmentRegex(tc.in)
			if !equalStrings(gotSentences, tc.wantSentences) {
				t.Errorf("sentences: want %q, got %q", tc.wantSentences, gotSentences)
			}
			if gotRemaining != tc.wantRemaining {
				t.Errorf("remaining: want %q, got %q", tc.wantRemaining, gotRemaining)
			}
		})
	}
}

func TestIsCompleteSentence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"Done.", true},
		{"好的。", true},
		{"Really?", true},
		{"trailing spaces.  ", true},
		{"See Dr.", false},
		{"e.g.", false},
		{"unfinished", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := textseg.IsCompleteSentence(tc.in); got != tc.want {
			t.Errorf("IsCompleteSentence(%q): want %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestSplitAtFirstComma(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		in       string
		wantHead string
		wantRest string
		wantOK   bool
	}{
		{
			name:     "plain split",
			in:       "Well, this is fine",
			wantHead: "Well",
			wantRest: "this is fine",
			wantOK:   true,
		},
		{
			name:     "bold span protects its comma",
			in:       "Well, this is **bold, emphasis**, right.",
			wantHead: "Well",
			wantRest: "this is **bold, emphasis**, right.",
			wantOK:   true,
		},
		{
			name:   "only comma is inside bold span",
			in:     "**bold, emphasis** only",
			wantOK: false,
		},
		{
			name:   "only comma is inside code span",
			in:     "run `f(a, b)` now",
			wantOK: false,
		},
		{
			name:   "heading line comma protected",
			in:     "# Title, subtitle",
			wantOK: false,
		},
		{
			name:   "digit list stays intact",
			in:     "numbers 1, 2, 3 follow",
			wantOK: false,
		},
		{
			name:   "digit list with chinese commas stays intact",
			in:     "数字 1，2，3 如下",
			wantOK: false,
		},
		{
			name:     "digit before comma with words after splits",
			in:       "version 2, released today",
			wantHead: "version 2",
			wantRest: "released today",
			wantOK:   true,
		},
		{
			name:     "enumerator after comma splits",
			in:       "第一步完成，2. 第二步开始",
			wantHead: "第一步完成",
			wantRest: "2. 第二步开始",
			wantOK:   true,
		},
		{
			name:     "chinese comma",
			in:       "你好，世界",
			wantHead: "你好",
			wantRest: "世界",
			wantOK:   true,
		},
		{
			name:   "no comma at all",
			in:     "nothing here",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			head, rest, ok := textseg.SplitAtFirstComma(tc.in)
			if ok != tc.wantOK {
				t.Fatalf("ok: want %v, got %v (head=%q rest=%q)", tc.wantOK, ok, head, rest)
			}
			if !ok {
				return
			}
			if head != tc.wantHead {
				t.Errorf("head: want %q, got %q", tc.wantHead, head)
			}
			if rest != tc.wantRest {
				t.Errorf("rest: want %q, got %q", tc.wantRest, rest)
			}
		})
	}
}

func TestLaTeXGuardRoundTrip(t *testing.T) {
	t.Parallel()

	in := "The identity $$a. b! c?$$ holds, and $x_i$ grows. Done."
	var guard textseg.LaTeXGuard
	protected := guard.Protect(in)

	if strings.Contains(protected, "$") {
		t.Fatalf("protected text still contains formulas: %q", protected)
	}

	sentences, remaining := textseg.SegmentRegex(protected)
	sentences = guard.RestoreAll(sentences)

	joined := strings.Join(sentences, " ") + remaining
	if !strings.Contains(joined, "$$a. b! c?$$") {
		t.Errorf("block formula not restored: %q", joined)
	}
	if !strings.Contains(joined, "$x_i$") {
		t.Errorf("inline formula not restored: %q", joined)
	}
	// The formula's punctuation must not have created extra boundaries.
	if len(sentences) != 2 {
		t.Errorf("sentences: want 2, got %d: %q", len(sentences), sentences)
	}
}

func TestSegmentProtectsLaTeX(t *testing.T) {
	t.Parallel()

	sentences, remaining := textseg.Segment("See $f(x) = x!$ for details. More", textseg.MethodRegex)
	if len(sentences) != 1 || sentences[0] != "See $f(x) = x!$ for details." {
		t.Errorf("sentences: got %q", sentences)
	}
	if remaining != "More" {
		t.Errorf("remaining: want %q, got %q", "More", remaining)
	}
}

func TestSegmentStatisticalFallsBackOnUnknownLanguage(t *testing.T) {
	t.Parallel()

	// Digits and symbols give the detector nothing to work with; the regex
	// path must still segment.
	sentences, _ := textseg.SegmentStatistical("123. 456!")
	if len(sentences) == 0 {
		t.Error("want at least one sentence from fallback, got none")
	}
}

func TestSegmentStatisticalDecimalGuard(t *testing.T) {
	t.Parallel()

	sentences, remaining := textseg.SegmentStatistical("The value of pi is 3.14 exactly. Next")
	if len(sentences) != 1 {
		t.Fatalf("sentences: want 1, got %d: %q", len(sentences), sentences)
	}
	if !strings.Contains(sentences[0], "3.14") {
		t.Errorf("decimal split apart: %q", sentences[0])
	}
	if remaining != "Next" {
		t.Errorf("remaining: want %q, got %q", "Next", remaining)
	}
}

func TestMergeIsolatedEnumerators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "merges into next sentence",
			in:   []string{"步骤如下", "1.", "第一步", "2)", "第二步"},
			want: []string{"步骤如下", "1. 第一步", "2) 第二步"},
		},
		{
			name: "circled digit",
			in:   []string{"①", "先这样"},
			want: []string{"① 先这样"},
		},
		{
			name: "trailing enumerator kept",
			in:   []string{"done", "3."},
			want: []string{"done", "3."},
		},
		{
			name: "nothing to merge",
			in:   []string{"plain", "sentences"},
			want: []string{"plain", "sentences"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textseg.MergeIsolatedEnumerators(tc.in)
			if !equalStrings(got, tc.want) {
				t.Errorf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestTrimTrailingCJKPunct(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"你好。", "你好"},
		{"你好，", "你好"},
		{"你好。。", "你好。"},
		{"Hello.", "Hello."},
		{"Hi!", "Hi!"},
		{"带空格。  ", "带空格"},
	}
	for _, tc := range cases {
		if got := textseg.TrimTrailingCJKPunct(tc.in); got != tc.want {
			t.Errorf("TrimTrailingCJKPunct(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
