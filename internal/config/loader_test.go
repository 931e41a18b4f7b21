package config_test

import (
	"strings"
	"testing"

	"github.com/lunavoice/lunavoice/internal/config"
)

func TestLoadFromReaderFullConfig(t *testing.T) {
	yaml := `
server:
  listen_addr: ":9000"
  log_level: debug

character:
  conf_uid: luna-v1
  name: Luna
  avatar: luna.png
  human_name: Sam
  persona: "A gentle deer spirit."

providers:
  agent:
    name: openai
    api_key: sk-agent
    model: gpt-4o
  asr:
    name: whisper
    model: models/ggml-base.bin
  tts:
    name: stepfun
    api_key: sk-tts
    model: step-tts-mini
    voice: cixingnansheng

synthesis:
  cache_dir: /tmp/lunavoice-cache
  merge_audio: true
  merge_cap: 3

conversation:
  proactive_prompt_path: prompts/proactive.txt
  cancel_shield_ms: 500

history:
  postgres_dsn: postgres://luna@localhost/lunavoice
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen_addr = %q, want :9000", cfg.Server.ListenAddr)
	}
	if cfg.Character.Name != "Luna" || cfg.Character.ConfUID != "luna-v1" {
		t.Errorf("character = %+v", cfg.Character)
	}
	if cfg.Providers.ASR.Model != "models/ggml-base.bin" {
		t.Errorf("asr model = %q", cfg.Providers.ASR.Model)
	}
	if cfg.Providers.TTS.Voice != "cixingnansheng" {
		t.Errorf("tts voice = %q", cfg.Providers.TTS.Voice)
	}
	if !cfg.Synthesis.MergeAudio || cfg.Synthesis.MergeCap != 3 {
		t.Errorf("synthesis = %+v", cfg.Synthesis)
	}
	if cfg.Conversation.CancelShieldMS != 500 {
		t.Errorf("cancel_shield_ms = %d, want 500", cfg.Conversation.CancelShieldMS)
	}
}

func TestLoadFromReaderParsesFallbackProviders(t *testing.T) {
	yaml := `
providers:
  agent:
    name: openai
  asr:
    name: whisper
    model: models/ggml-base.bin
  tts:
    name: stepfun
  tts_fallback:
    name: openai
    voice: nova
  asr_fallback:
    name: openai
    api_key: sk-backup
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.TTSFallback.Name != "openai" || cfg.Providers.TTSFallback.Voice != "nova" {
		t.Errorf("tts_fallback = %+v", cfg.Providers.TTSFallback)
	}
	if cfg.Providers.ASRFallback.Name != "openai" || cfg.Providers.ASRFallback.APIKey != "sk-backup" {
		t.Errorf("asr_fallback = %+v", cfg.Providers.ASRFallback)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	yaml := minimalYAML + `
frobnicator: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("want decode error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "decode yaml") {
		t.Errorf("error = %v, want decode error", err)
	}
}

func TestLoadFromReaderExpandsEnvironment(t *testing.T) {
	t.Setenv("LUNA_TEST_API_KEY", "sk-from-env")

	yaml := `
providers:
  agent:
    name: openai
    api_key: ${LUNA_TEST_API_KEY}
  tts:
    name: stepfun
    api_key: ${LUNA_TEST_API_KEY}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.Agent.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want sk-from-env", cfg.Providers.Agent.APIKey)
	}
}

func TestLoadFromReaderUnsetEnvBecomesEmpty(t *testing.T) {
	yaml := `
providers:
  agent:
    name: openai
    api_key: ${LUNA_TEST_DOES_NOT_EXIST}
  tts:
    name: stepfun
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.Agent.APIKey != "" {
		t.Errorf("api_key = %q, want empty", cfg.Providers.Agent.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml")
	if err == nil {
		t.Fatal("want error for missing file, got nil")
	}
}
