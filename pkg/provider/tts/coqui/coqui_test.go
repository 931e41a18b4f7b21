package coqui_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/lunavoice/lunavoice/pkg/audio"
	"github.com/lunavoice/lunavoice/pkg/provider/tts/coqui"
)

func wavBytes(t *testing.T) []byte {
	t.Helper()
	samples := make([]int16, 220)
	for i := range samples {
		samples[i] = 6000
	}
	return audio.EncodeWAV(audio.PCM{Samples: samples, SampleRate: 22050, Channels: 1})
}

func TestSynthesizeStandard(t *testing.T) {
	t.Parallel()
	wav := wavBytes(t)

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("path = %q, want /api/tts", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"text":       q.Get("text"),
			"speaker_id": q.Get("speaker_id"),
			"language":   q.Get("language_id"),
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	p, err := coqui.New(srv.URL, t.TempDir(),
		coqui.WithLanguage("de"),
		coqui.WithSpeaker("thorsten"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Format() != "wav" {
		t.Errorf("Format() = %q, want wav", p.Format())
	}
	if !p.SupportsConcurrency() {
		t.Error("SupportsConcurrency() = false, want true")
	}

	path, err := p.Synthesize(t.Context(), "Guten Morgen.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotQuery["text"] != "Guten Morgen." {
		t.Errorf("text param = %q, want %q", gotQuery["text"], "Guten Morgen.")
	}
	if gotQuery["speaker_id"] != "thorsten" {
		t.Errorf("speaker_id param = %q, want thorsten", gotQuery["speaker_id"])
	}
	if gotQuery["language"] != "de" {
		t.Errorf("language_id param = %q, want de", gotQuery["language"])
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read synthesized file: %v", err)
	}
	if !bytes.Equal(got, wav) {
		t.Errorf("cached file differs from server response (%d vs %d bytes)", len(got), len(wav))
	}
}

func TestSynthesizeXTTS(t *testing.T) {
	t.Parallel()
	wav := wavBytes(t)

	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts_to_audio/" {
			t.Errorf("path = %q, want /tts_to_audio/", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Write(wav)
	}))
	defer srv.Close()

	p, err := coqui.New(srv.URL, t.TempDir(),
		coqui.WithAPIMode(coqui.APIModeXTTS),
		coqui.WithSpeaker("luna.wav"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := p.Synthesize(t.Context(), "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotBody["text"] != "Hello there." {
		t.Errorf("text = %q, want %q", gotBody["text"], "Hello there.")
	}
	if gotBody["speaker_wav"] != "luna.wav" {
		t.Errorf("speaker_wav = %q, want luna.wav", gotBody["speaker_wav"])
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("synthesized file missing: %v", err)
	}
}

func TestSynthesizeXTTSRequiresSpeaker(t *testing.T) {
	t.Parallel()
	p, err := coqui.New("http://localhost:1", t.TempDir(), coqui.WithAPIMode(coqui.APIModeXTTS))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(t.Context(), "hi"); err == nil {
		t.Fatal("Synthesize without speaker: want error, got nil")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := coqui.New(srv.URL, t.TempDir(), coqui.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(t.Context(), "hi"); err == nil {
		t.Fatal("Synthesize against failing server: want error, got nil")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := coqui.New("", t.TempDir()); err == nil {
		t.Fatal("New with empty serverURL: want error, got nil")
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()
	p, err := coqui.New("http://localhost:1", t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(t.Context(), ""); err == nil {
		t.Fatal("Synthesize with empty text: want error, got nil")
	}
}
