// Command lunavoice is the main entry point for the lunavoice avatar server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lunavoice/lunavoice/internal/config"
	"github.com/lunavoice/lunavoice/internal/conversation"
	"github.com/lunavoice/lunavoice/internal/health"
	"github.com/lunavoice/lunavoice/internal/history"
	"github.com/lunavoice/lunavoice/internal/history/postgres"
	"github.com/lunavoice/lunavoice/internal/observe"
	"github.com/lunavoice/lunavoice/internal/resilience"
	"github.com/lunavoice/lunavoice/internal/server"
	"github.com/lunavoice/lunavoice/pkg/provider/agent"
	"github.com/lunavoice/lunavoice/pkg/provider/agent/anyllm"
	agentoai "github.com/lunavoice/lunavoice/pkg/provider/agent/openai"
	"github.com/lunavoice/lunavoice/pkg/provider/asr"
	asroai "github.com/lunavoice/lunavoice/pkg/provider/asr/openai"
	"github.com/lunavoice/lunavoice/pkg/provider/asr/whisper"
	"github.com/lunavoice/lunavoice/pkg/provider/tts"
	"github.com/lunavoice/lunavoice/pkg/provider/tts/coqui"
	"github.com/lunavoice/lunavoice/pkg/provider/tts/elevenlabs"
	ttsoai "github.com/lunavoice/lunavoice/pkg/provider/tts/openai"
	"github.com/lunavoice/lunavoice/pkg/provider/tts/stepfun"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lunavoice: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lunavoice: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lunavoice starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "lunavoice",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Chat history backend ──────────────────────────────────────────────────
	store, closeStore, err := buildHistoryStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect history store", "err", err)
		return 1
	}
	defer closeStore()

	// ── Audio cache directory ─────────────────────────────────────────────────
	if err := os.MkdirAll(cfg.Synthesis.CacheDir, 0o755); err != nil {
		slog.Error("failed to create audio cache directory", "dir", cfg.Synthesis.CacheDir, "err", err)
		return 1
	}

	// ── Server ────────────────────────────────────────────────────────────────
	srv, err := server.New(cfg.Server.ListenAddr, server.Deps{
		Agent:   providers.Agent,
		TTS:     providers.TTS,
		ASR:     providers.ASR,
		History: store,
		Character: conversation.Character{
			ConfUID:   cfg.Character.ConfUID,
			Name:      cfg.Character.Name,
			Avatar:    cfg.Character.Avatar,
			HumanName: cfg.Character.HumanName,
		},
		Health:              health.New(healthCheckers(cfg, store)...),
		ProactivePromptPath: cfg.Conversation.ProactivePromptPath,
		ConvOptions:         conversationOptions(cfg),
	})
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(old, new, logLevel)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages. cfg supplies cross-cutting
// values the entry does not carry, such as the persona and the audio cache
// directory.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── Agent ─────────────────────────────────────────────────────────────────

	reg.RegisterAgent("openai", func(entry config.ProviderEntry) (agent.Provider, error) {
		opts := []agentoai.Option{}
		if entry.BaseURL != "" {
			opts = append(opts, agentoai.WithBaseURL(entry.BaseURL))
		}
		if cfg.Character.Persona != "" {
			opts = append(opts, agentoai.WithSystemPrompt(cfg.Character.Persona))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, agentoai.WithOrganization(org))
		}
		p, err := agentoai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterAgent("anyllm", func(entry config.ProviderEntry) (agent.Provider, error) {
		backend := optString(entry.Options, "backend")
		if backend == "" {
			backend = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New(backend, entry.Model, cfg.Character.Persona, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── ASR ───────────────────────────────────────────────────────────────────

	// whisper talks to a whisper.cpp server when a base_url is set and loads
	// the model in-process via CGO otherwise (entry.Model is the model path).
	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Transcriber, error) {
		if entry.BaseURL != "" {
			var opts []whisper.Option
			if entry.Model != "" {
				opts = append(opts, whisper.WithModel(entry.Model))
			}
			if lang := optString(entry.Options, "language"); lang != "" {
				opts = append(opts, whisper.WithLanguage(lang))
			}
			t, err := whisper.New(entry.BaseURL, opts...)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		t, err := whisper.NewNative(entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	})

	reg.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Transcriber, error) {
		var opts []asroai.Option
		if entry.BaseURL != "" {
			opts = append(opts, asroai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, asroai.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, asroai.WithLanguage(lang))
		}
		t, err := asroai.New(entry.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("stepfun", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []stepfun.Option
		if entry.BaseURL != "" {
			opts = append(opts, stepfun.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, stepfun.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, stepfun.WithVoice(entry.Voice))
		}
		p, err := stepfun.New(entry.APIKey, cfg.Synthesis.CacheDir, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsoai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttsoai.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, ttsoai.WithVoice(entry.Voice))
		}
		p, err := ttsoai.New(entry.APIKey, cfg.Synthesis.CacheDir, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if entry.Voice != "" {
			opts = append(opts, coqui.WithSpeaker(entry.Voice))
		}
		p, err := coqui.New(entry.BaseURL, cfg.Synthesis.CacheDir, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, elevenlabs.WithVoice(entry.Voice))
		}
		p, err := elevenlabs.New(entry.APIKey, cfg.Synthesis.CacheDir, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// providers groups the instantiated pipeline providers.
type providers struct {
	Agent agent.Provider
	ASR   asr.Transcriber
	TTS   tts.Provider
}

// buildProviders instantiates all providers named in cfg using the registry.
// Agent and TTS are mandatory; ASR is optional and only disables voice input
// when absent.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providers, error) {
	ps := &providers{}

	p, err := reg.CreateAgent(cfg.Providers.Agent)
	if err != nil {
		return nil, fmt.Errorf("create agent provider %q: %w", cfg.Providers.Agent.Name, err)
	}
	ps.Agent = p
	slog.Info("provider created", "kind", "agent", "name", cfg.Providers.Agent.Name)

	t, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = t
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if name := cfg.Providers.TTSFallback.Name; name != "" {
		backup, err := reg.CreateTTS(cfg.Providers.TTSFallback)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback provider %q: %w", name, err)
		}
		group := resilience.NewTTSFallback(t, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		if err := group.AddFallback(name, backup); err != nil {
			return nil, err
		}
		ps.TTS = group
		slog.Info("tts fallback enabled", "primary", cfg.Providers.TTS.Name, "fallback", name)
	}

	if name := cfg.Providers.ASR.Name; name != "" {
		a, err := reg.CreateASR(cfg.Providers.ASR)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("asr provider not registered — voice input disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create asr provider %q: %w", name, err)
		} else {
			ps.ASR = a
			slog.Info("provider created", "kind", "asr", "name", name)
		}
	}

	if name := cfg.Providers.ASRFallback.Name; name != "" && ps.ASR != nil {
		backup, err := reg.CreateASR(cfg.Providers.ASRFallback)
		if err != nil {
			return nil, fmt.Errorf("create asr fallback provider %q: %w", name, err)
		}
		group := resilience.NewASRFallback(ps.ASR, cfg.Providers.ASR.Name, resilience.FallbackConfig{})
		group.AddFallback(name, backup)
		ps.ASR = group
		slog.Info("asr fallback enabled", "primary", cfg.Providers.ASR.Name, "fallback", name)
	}

	return ps, nil
}

// buildHistoryStore connects the configured chat history backend. Without a
// DSN it falls back to the in-memory store.
func buildHistoryStore(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
	if cfg.History.PostgresDSN == "" {
		slog.Info("history backend", "kind", "memory")
		return history.NewMemStore(), func() {}, nil
	}
	pg, err := postgres.New(ctx, cfg.History.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("history backend", "kind", "postgres")
	return pg, pg.Close, nil
}

// healthCheckers builds the readiness probes for the configured dependencies.
func healthCheckers(cfg *config.Config, store history.Store) []health.Checker {
	checkers := []health.Checker{
		{
			Name: "audio_cache",
			Check: func(context.Context) error {
				info, err := os.Stat(cfg.Synthesis.CacheDir)
				if err != nil {
					return err
				}
				if !info.IsDir() {
					return fmt.Errorf("%s is not a directory", cfg.Synthesis.CacheDir)
				}
				return nil
			},
		},
	}
	if cfg.History.PostgresDSN != "" {
		checkers = append(checkers, health.Checker{
			Name: "history",
			Check: func(ctx context.Context) error {
				_, err := store.List(ctx, cfg.Character.ConfUID)
				return err
			},
		})
	}
	return checkers
}

// conversationOptions translates synthesis and conversation tunables into
// per-connection controller options.
func conversationOptions(cfg *config.Config) []conversation.Option {
	var opts []conversation.Option
	if cfg.Synthesis.MergeAudio {
		opts = append(opts, conversation.WithMergeAudio(cfg.Synthesis.MergeCap))
	}
	if cfg.Conversation.CancelShieldMS > 0 {
		opts = append(opts, conversation.WithCancelShield(time.Duration(cfg.Conversation.CancelShieldMS)*time.Millisecond))
	}
	return opts
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyConfigChange applies the hot-reloadable parts of a config change. Only
// the log level takes effect immediately; everything else applies to new
// connections after a restart and is logged so the operator knows.
func applyConfigChange(old, new *config.Config, logLevel *slog.LevelVar) {
	diff := config.Diff(old, new)
	if !diff.Changed() {
		return
	}
	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.CharacterChanged {
		slog.Warn("character changed in config — restart to apply")
	}
	if diff.VoiceChanged {
		slog.Warn("tts voice changed in config — restart to apply")
	}
	if diff.ProactivePromptChanged {
		slog.Warn("proactive prompt path changed in config — restart to apply")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        lunavoice — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Agent", cfg.Providers.Agent.Name, cfg.Providers.Agent.Model)
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Voice)
	printSummaryLine("Character", cfg.Character.Name)
	if cfg.Synthesis.MergeAudio {
		printSummaryLine("Merge audio", "enabled")
	} else {
		printSummaryLine("Merge audio", "disabled")
	}
	if cfg.History.PostgresDSN != "" {
		printSummaryLine("History", "postgres")
	} else {
		printSummaryLine("History", "memory")
	}
	printSummaryLine("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, detail string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if detail != "" {
		value = name + " / " + detail
	}
	printSummaryLine(kind, value)
}

func printSummaryLine(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
