package config_test

import (
	"strings"
	"testing"

	"github.com/lunavoice/lunavoice/internal/config"
)

// minimalYAML is the smallest config that passes validation.
const minimalYAML = `
providers:
  agent:
    name: openai
    api_key: sk-agent
  tts:
    name: stepfun
    api_key: sk-tts
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":12393" {
		t.Errorf("listen_addr default = %q, want :12393", cfg.Server.ListenAddr)
	}
	if cfg.Character.Name != "AI" {
		t.Errorf("character name default = %q, want AI", cfg.Character.Name)
	}
	if cfg.Character.ConfUID != "default" {
		t.Errorf("conf_uid default = %q, want default", cfg.Character.ConfUID)
	}
	if cfg.Synthesis.CacheDir != "cache" {
		t.Errorf("cache_dir default = %q, want cache", cfg.Synthesis.CacheDir)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "missing agent provider",
			mutate:  func(c *config.Config) { c.Providers.Agent.Name = "" },
			wantErr: "providers.agent.name is required",
		},
		{
			name:    "missing tts provider",
			mutate:  func(c *config.Config) { c.Providers.TTS.Name = "" },
			wantErr: "providers.tts.name is required",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantErr: `server.log_level "verbose" is invalid`,
		},
		{
			name:    "negative merge cap",
			mutate:  func(c *config.Config) { c.Synthesis.MergeCap = -1 },
			wantErr: "synthesis.merge_cap -1 must not be negative",
		},
		{
			name:    "negative cancel shield",
			mutate:  func(c *config.Config) { c.Conversation.CancelShieldMS = -5 },
			wantErr: "conversation.cancel_shield_ms -5 must not be negative",
		},
		{
			name:    "incomplete tls",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"} },
			wantErr: "server.tls requires both cert_file and key_file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
			if err != nil {
				t.Fatalf("LoadFromReader: %v", err)
			}
			tc.mutate(cfg)

			err = config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate: want error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateJoinsMultipleErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Synthesis.MergeCap = -2

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate: want error, got nil")
	}
	for _, want := range []string{
		"server.log_level",
		"providers.agent.name",
		"providers.tts.name",
		"synthesis.merge_cap",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should not be valid")
	}
}
