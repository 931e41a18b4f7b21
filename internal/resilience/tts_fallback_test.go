package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/lunavoice/lunavoice/internal/resilience"
	ttsmock "github.com/lunavoice/lunavoice/pkg/provider/tts/mock"
)

func newTTSGroup(t *testing.T, primary, backup *ttsmock.Provider) *resilience.TTSFallback {
	t.Helper()
	f := resilience.NewTTSFallback(primary, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	if err := f.AddFallback("backup", backup); err != nil {
		t.Fatalf("AddFallback: %v", err)
	}
	return f
}

func TestTTSFallbackPrefersPrimary(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New(t.TempDir())
	backup := ttsmock.New(t.TempDir())
	f := newTTSGroup(t, primary, backup)

	if _, err := f.Synthesize(t.Context(), "Hello."); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := primary.Texts(); len(got) != 1 || got[0] != "Hello." {
		t.Errorf("primary texts = %v, want [Hello.]", got)
	}
	if got := backup.Texts(); len(got) != 0 {
		t.Errorf("backup texts = %v, want none", got)
	}
}

func TestTTSFallbackFailsOver(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New(t.TempDir())
	primary.SynthesizeErr = errors.New("quota exhausted")
	backup := ttsmock.New(t.TempDir())
	f := newTTSGroup(t, primary, backup)

	path, err := f.Synthesize(t.Context(), "Hello.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if path == "" {
		t.Fatal("Synthesize returned empty path")
	}
	if got := backup.Texts(); len(got) != 1 || got[0] != "Hello." {
		t.Errorf("backup texts = %v, want [Hello.]", got)
	}
}

func TestTTSFallbackSkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New(t.TempDir())
	primary.SynthesizeErr = errors.New("down")
	backup := ttsmock.New(t.TempDir())
	f := newTTSGroup(t, primary, backup)

	// Two failures open the primary's breaker.
	for range 2 {
		if _, err := f.Synthesize(t.Context(), "hi"); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
	}
	primaryCalls := len(primary.Texts())

	if _, err := f.Synthesize(t.Context(), "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := len(primary.Texts()); got != primaryCalls {
		t.Errorf("primary called %d times after breaker opened, want %d", got, primaryCalls)
	}
}

func TestTTSFallbackAllFail(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New(t.TempDir())
	primary.SynthesizeErr = errors.New("down")
	backup := ttsmock.New(t.TempDir())
	backup.SynthesizeErr = errors.New("also down")
	f := newTTSGroup(t, primary, backup)

	_, err := f.Synthesize(t.Context(), "hi")
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallbackRejectsFormatMismatch(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New(t.TempDir())
	mp3 := ttsmock.New(t.TempDir())
	mp3.FormatResult = "mp3"

	f := resilience.NewTTSFallback(primary, "primary", resilience.FallbackConfig{})
	if err := f.AddFallback("mp3", mp3); err == nil {
		t.Fatal("AddFallback with mismatched format: want error, got nil")
	}
	if f.Format() != "wav" {
		t.Errorf("Format() = %q, want wav", f.Format())
	}
}

func TestTTSFallbackConcurrencyIsConjunction(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New(t.TempDir())
	primary.Concurrent = true
	backup := ttsmock.New(t.TempDir())
	backup.Concurrent = false
	f := newTTSGroup(t, primary, backup)

	if f.SupportsConcurrency() {
		t.Error("SupportsConcurrency() = true, want false when any backend is serialized")
	}
}
