package pipeline_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/lunavoice/lunavoice/internal/divider"
	"github.com/lunavoice/lunavoice/internal/pipeline"
	"github.com/lunavoice/lunavoice/pkg/types"
)

func runChain(t *testing.T, c *pipeline.Chain, events []divider.Event) []pipeline.Event {
	t.Helper()
	in := make(chan divider.Event)
	go func() {
		defer close(in)
		for _, ev := range events {
			in <- ev
		}
	}()
	var out []pipeline.Event
	for ev := range c.Run(context.Background(), in) {
		out = append(out, ev)
	}
	return out
}

func sentence(text string) divider.Event {
	return divider.Event{Sentence: &types.SentenceUnit{
		Text: text,
		Tags: []types.TagInfo{{State: types.TagNone}},
	}}
}

func tagged(text, name string, state types.TagState) divider.Event {
	return divider.Event{Sentence: &types.SentenceUnit{
		Text: text,
		Tags: []types.TagInfo{{Name: name, State: state}},
	}}
}

func TestChainPlainSentence(t *testing.T) {
	t.Parallel()

	c := pipeline.NewChain(pipeline.WithCharacter("Luna", "luna.png"))
	out := runChain(t, c, []divider.Event{sentence("This is **bold** talk.")})

	if len(out) != 1 || out[0].Output == nil {
		t.Fatalf("want 1 output, got %+v", out)
	}
	got := out[0].Output
	if got.DisplayText.Text != "This is **bold** talk." {
		t.Errorf("display text altered: %q", got.DisplayText.Text)
	}
	if got.DisplayText.Name != "Luna" || got.DisplayText.Avatar != "luna.png" {
		t.Errorf("character not stamped: %+v", got.DisplayText)
	}
	if got.TTSText != "This is bold talk" {
		t.Errorf("tts projection: want %q, got %q", "This is bold talk", got.TTSText)
	}
}

func TestChainThinkTag(t *testing.T) {
	t.Parallel()

	c := pipeline.NewChain()
	out := runChain(t, c, []divider.Event{
		tagged("", "think", types.TagStart),
		tagged("Let me reason about this.", "think", types.TagInside),
		tagged("", "think", types.TagEnd),
		sentence("Here is the answer."),
	})
	if len(out) != 4 {
		t.Fatalf("want 4 outputs, got %d", len(out))
	}

	wantDisplay := []string{"(", "Let me reason about this.", ")", "Here is the answer."}
	for i, want := range wantDisplay {
		if got := out[i].Output.DisplayText.Text; got != want {
			t.Errorf("event %d display: want %q, got %q", i, want, got)
		}
	}
	for i := 0; i < 3; i++ {
		if got := out[i].Output.TTSText; got != "" {
			t.Errorf("think event %d spoken: %q", i, got)
		}
	}
	if out[3].Output.TTSText != "Here is the answer" {
		t.Errorf("answer tts: got %q", out[3].Output.TTSText)
	}
}

func TestChainDualStreamText(t *testing.T) {
	t.Parallel()

	c := pipeline.NewChain()
	out := runChain(t, c, []divider.Event{{Sentence: &types.SentenceUnit{
		Text:       "Hello! 😊 Nice to see you!",
		Tags:       []types.TagInfo{{State: types.TagNone}},
		TTSText:    "Hi there.",
		HasTTSText: true,
	}}})
	if len(out) != 1 {
		t.Fatalf("want 1 output, got %d", len(out))
	}
	got := out[0].Output
	if got.DisplayText.Text != "Hello! 😊 Nice to see you!" {
		t.Errorf("display text altered: %q", got.DisplayText.Text)
	}
	if got.TTSText != "Hi there" {
		t.Errorf("tts: want %q, got %q", "Hi there", got.TTSText)
	}
}

func TestChainRecordsPassThrough(t *testing.T) {
	t.Parallel()

	rec := types.Record{"type": "tool_call_status", "status": "running"}
	c := pipeline.NewChain()
	out := runChain(t, c, []divider.Event{
		sentence("First."),
		{Record: rec},
		sentence("Second."),
	})
	if len(out) != 3 {
		t.Fatalf("want 3 events, got %d", len(out))
	}
	if out[1].Output != nil || !reflect.DeepEqual(out[1].Record, rec) {
		t.Errorf("record not passed through in order: %+v", out[1])
	}
	if out[0].Output == nil || out[2].Output == nil {
		t.Errorf("sentences lost around record")
	}
}

func TestChainEmotionExtraction(t *testing.T) {
	t.Parallel()

	det := pipeline.NewBracketDetector([]string{"joy", "anger"})
	c := pipeline.NewChain(pipeline.WithEmotionDetector(det))

	out := runChain(t, c, []divider.Event{
		sentence("[joy] So glad you asked! [joy]"),
		sentence("[shrug] not a known one"),
		tagged("", "think", types.TagStart),
	})
	if got := out[0].Output.Actions.Expressions; !reflect.DeepEqual(got, []string{"joy"}) {
		t.Errorf("want [joy] once, got %v", got)
	}
	if got := out[1].Output.Actions; !got.IsEmpty() {
		t.Errorf("unknown expression reported: %v", got.Expressions)
	}
	if got := out[2].Output.Actions; !got.IsEmpty() {
		t.Errorf("tag boundary ran detection: %v", got.Expressions)
	}
}

func TestBracketDetectorUnfiltered(t *testing.T) {
	t.Parallel()

	det := pipeline.NewBracketDetector(nil)
	got := det.Detect("[wave] hello [Wave] again [smile]")
	want := []string{"wave", "smile"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestChainContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan divider.Event)
	out := pipeline.NewChain().Run(ctx, in)
	cancel()
	for range out {
	}
}
