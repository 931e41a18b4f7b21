package config_test

import (
	"errors"
	"testing"

	"github.com/lunavoice/lunavoice/internal/config"
	"github.com/lunavoice/lunavoice/pkg/provider/tts"
	ttsmock "github.com/lunavoice/lunavoice/pkg/provider/tts/mock"
)

func TestRegistryCreateTTS(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()

	var gotEntry config.ProviderEntry
	r.RegisterTTS("mock", func(entry config.ProviderEntry) (tts.Provider, error) {
		gotEntry = entry
		return ttsmock.New(t.TempDir()), nil
	})

	entry := config.ProviderEntry{Name: "mock", APIKey: "sk-test", Voice: "luna"}
	p, err := r.CreateTTS(entry)
	if err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if p == nil {
		t.Fatal("CreateTTS returned nil provider")
	}
	if gotEntry.Voice != "luna" {
		t.Errorf("factory entry = %+v, want voice luna", gotEntry)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()

	_, err := r.CreateAgent(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("want ErrProviderNotRegistered, got %v", err)
	}
	_, err = r.CreateASR(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("want ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()

	r.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		t.Fatal("stale factory called")
		return nil, nil
	})
	r.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return ttsmock.New(t.TempDir()), nil
	})

	if _, err := r.CreateTTS(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
}
