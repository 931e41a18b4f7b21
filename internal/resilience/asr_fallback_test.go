package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/lunavoice/lunavoice/internal/resilience"
	"github.com/lunavoice/lunavoice/pkg/audio"
	asrmock "github.com/lunavoice/lunavoice/pkg/provider/asr/mock"
)

func clip() audio.PCM {
	return audio.PCM{Samples: []int16{1, 2, 3, 4}, SampleRate: 16000, Channels: 1}
}

func TestASRFallbackPrefersPrimary(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Transcriber{Result: "from primary"}
	backup := &asrmock.Transcriber{Result: "from backup"}

	f := resilience.NewASRFallback(primary, "primary", resilience.FallbackConfig{})
	f.AddFallback("backup", backup)

	got, err := f.Transcribe(t.Context(), clip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "from primary" {
		t.Errorf("Transcribe = %q, want %q", got, "from primary")
	}
	if backup.Calls() != 0 {
		t.Errorf("backup calls = %d, want 0", backup.Calls())
	}
}

func TestASRFallbackFailsOver(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Transcriber{Err: errors.New("server unreachable")}
	backup := &asrmock.Transcriber{Result: "from backup"}

	f := resilience.NewASRFallback(primary, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.AddFallback("backup", backup)

	got, err := f.Transcribe(t.Context(), clip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "from backup" {
		t.Errorf("Transcribe = %q, want %q", got, "from backup")
	}
}

func TestASRFallbackAllFail(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Transcriber{Err: errors.New("down")}

	f := resilience.NewASRFallback(primary, "primary", resilience.FallbackConfig{})
	_, err := f.Transcribe(t.Context(), clip())
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
