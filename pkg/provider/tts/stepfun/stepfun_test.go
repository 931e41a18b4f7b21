package stepfun_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lunavoice/lunavoice/pkg/provider/tts/ratelimit"
	"github.com/lunavoice/lunavoice/pkg/provider/tts/stepfun"
)

// newProvider builds a provider against srv with a roomy private limiter
// and a sleep recorder, so tests never really wait.
func newProvider(t *testing.T, srv *httptest.Server, slept *[]time.Duration, opts ...stepfun.Option) *stepfun.Provider {
	t.Helper()
	base := []stepfun.Option{
		stepfun.WithBaseURL(srv.URL),
		stepfun.WithLimiter(ratelimit.New(100, time.Minute)),
		stepfun.WithHTTPClient(srv.Client()),
		stepfun.WithSleep(func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		}),
	}
	p, err := stepfun.New("test-key", t.TempDir(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSynthesizeWritesAudioFile(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer srv.Close()

	var slept []time.Duration
	p := newProvider(t, srv, &slept)

	path, err := p.Synthesize(context.Background(), "你好")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: %q", gotAuth)
	}
	if gotBody["model"] != "step-tts-mini" || gotBody["input"] != "你好" {
		t.Errorf("request body: %v", gotBody)
	}
	if _, ok := gotBody["speed"]; ok {
		t.Errorf("default speed was sent: %v", gotBody)
	}
	if filepath.Ext(path) != ".mp3" {
		t.Errorf("want .mp3 file, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "fake-mp3-bytes" {
		t.Errorf("audio file contents: %q, err %v", data, err)
	}
	if !strings.Contains(filepath.Base(path), "_") {
		t.Errorf("cache filename missing timestamp separator: %s", path)
	}
}

func TestSynthesizeRetriesOnThrottle(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rpm exceeded"}}`))
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	var slept []time.Duration
	p := newProvider(t, srv, &slept)

	if _, err := p.Synthesize(context.Background(), "hello"); err != nil {
		t.Fatalf("Synthesize after throttle: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("want 2 requests, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != 12*time.Second {
		t.Errorf("want one 12s wait, got %v", slept)
	}
}

func TestSynthesizeGivesUpAfterThreeAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var slept []time.Duration
	p := newProvider(t, srv, &slept)

	if _, err := p.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("want error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("want 3 attempts, got %d", calls.Load())
	}
	if len(slept) != 2 {
		t.Errorf("want 2 waits between attempts, got %v", slept)
	}
}

func TestSynthesizeFailsFastOnOtherErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad voice"}}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	p := newProvider(t, srv, &slept)

	_, err := p.Synthesize(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "bad voice") {
		t.Fatalf("want API error message surfaced, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("non-throttle error retried: %d calls", calls.Load())
	}
	if len(slept) != 0 {
		t.Errorf("non-throttle error slept: %v", slept)
	}
}

func TestUnsupportedFormatFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var slept []time.Duration
	p := newProvider(t, srv, &slept, stepfun.WithFormat("ogg"))
	if got := p.Format(); got != "mp3" {
		t.Errorf("want fallback to mp3, got %q", got)
	}
}

func TestProviderIsSerial(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var slept []time.Duration
	p := newProvider(t, srv, &slept)
	if p.SupportsConcurrency() {
		t.Errorf("stepfun must not report concurrency support")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := stepfun.New("", t.TempDir()); err == nil {
		t.Errorf("want error for empty api key")
	}
}
