package wakeword_test

import (
	"testing"

	"github.com/lunavoice/lunavoice/internal/wakeword"
)

func TestCheckStop(t *testing.T) {
	t.Parallel()

	cfg := &wakeword.Config{Enabled: true, Words: []string{"停一下", "别说了"}}
	m := wakeword.New()

	cases := []struct {
		name     string
		text     string
		fuzzy    bool
		want     bool
		wantWord string
	}{
		{"exact whole utterance", "停一下", false, true, "停一下"},
		{"substring", "好了停一下吧", false, true, "停一下"},
		{"second word", "你别说了", false, true, "别说了"},
		{"no match", "继续讲", false, false, ""},
		{"homophone needs fuzzy", "停医下", false, false, ""},
		{"homophone with fuzzy", "停医下", true, true, "停一下"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := *cfg
			c.FuzzyPinyin = tc.fuzzy
			got := m.CheckStop(tc.text, &c)
			if got.Matched != tc.want {
				t.Fatalf("CheckStop(%q): want matched=%v, got %v", tc.text, tc.want, got.Matched)
			}
			if tc.want && got.Word != tc.wantWord {
				t.Errorf("CheckStop(%q): want word %q, got %q", tc.text, tc.wantWord, got.Word)
			}
		})
	}
}

func TestCheckStopDisabled(t *testing.T) {
	t.Parallel()

	m := wakeword.New()
	if got := m.CheckStop("停一下", nil); got.Matched {
		t.Errorf("nil config matched")
	}
	cfg := &wakeword.Config{Enabled: false, Words: []string{"停一下"}}
	if got := m.CheckStop("停一下", cfg); got.Matched {
		t.Errorf("disabled config matched")
	}
}

func TestCheckWake(t *testing.T) {
	t.Parallel()

	cfg := &wakeword.Config{Enabled: true, Words: []string{"小鹿"}}
	m := wakeword.New()

	cases := []struct {
		name      string
		text      string
		wantMatch bool
		wantClean string
	}{
		{"prefix with separator", "小鹿，今天天气怎么样", true, "今天天气怎么样"},
		{"prefix no separator", "小鹿今天天气怎么样", true, "今天天气怎么样"},
		{"mid utterance", "你好小鹿，讲个笑话", true, "讲个笑话"},
		{"wake word only", "小鹿", true, ""},
		{"wake word plus punctuation only", "小鹿。", true, ""},
		{"not present", "今天天气怎么样", false, "今天天气怎么样"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.CheckWake(tc.text, cfg)
			if got.Matched != tc.wantMatch {
				t.Fatalf("CheckWake(%q): want matched=%v, got %v", tc.text, tc.wantMatch, got.Matched)
			}
			if got.CleanText != tc.wantClean {
				t.Errorf("CheckWake(%q): want clean %q, got %q", tc.text, tc.wantClean, got.CleanText)
			}
		})
	}
}

func TestCheckWakePinyinFuzzy(t *testing.T) {
	t.Parallel()

	cfg := &wakeword.Config{Enabled: true, Words: []string{"小鹿"}, FuzzyPinyin: true}
	m := wakeword.New()

	got := m.CheckWake("小路，讲个故事", cfg)
	if !got.Matched {
		t.Fatalf("homophone wake word not matched")
	}
	if got.CleanText != "讲个故事" {
		t.Errorf("want clean %q, got %q", "讲个故事", got.CleanText)
	}
	if got.Word != "小鹿(~小路)" {
		t.Errorf("want annotated word %q, got %q", "小鹿(~小路)", got.Word)
	}
}

func TestCheckWakeLatinPhonetic(t *testing.T) {
	t.Parallel()

	cfg := &wakeword.Config{Enabled: true, Words: []string{"luna"}, FuzzyPinyin: true}
	m := wakeword.New()

	if got := m.CheckWake("loona are you there", cfg); !got.Matched {
		t.Errorf("phonetically similar wake word not matched")
	}
	if got := m.CheckWake("completely unrelated words", cfg); got.Matched {
		t.Errorf("unrelated text matched phonetically")
	}
}

func TestCheckWakeCaseInsensitive(t *testing.T) {
	t.Parallel()

	cfg := &wakeword.Config{Enabled: true, Words: []string{"Luna"}}
	m := wakeword.New()

	got := m.CheckWake("LUNA, what time is it", cfg)
	if !got.Matched {
		t.Fatalf("case-insensitive match failed")
	}
	if got.CleanText != "what time is it" {
		t.Errorf("want clean %q, got %q", "what time is it", got.CleanText)
	}
}
