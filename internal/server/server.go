// Package server exposes the conversation core over a websocket endpoint
// plus the usual operational HTTP routes.
//
// Each websocket connection gets its own conversation controller and its
// own chat history. Inbound messages are JSON objects dispatched on their
// "type" field; outbound messages are produced by the conversation layer
// and serialized through a per-connection write lock. /healthz, /readyz
// and /metrics are served next to the websocket route, all wrapped in the
// observe middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lunavoice/lunavoice/internal/conversation"
	"github.com/lunavoice/lunavoice/internal/health"
	"github.com/lunavoice/lunavoice/internal/history"
	"github.com/lunavoice/lunavoice/internal/observe"
	"github.com/lunavoice/lunavoice/pkg/provider/agent"
	"github.com/lunavoice/lunavoice/pkg/provider/asr"
	"github.com/lunavoice/lunavoice/pkg/provider/tts"
)

// shutdownTimeout bounds graceful HTTP shutdown once the run context ends.
const shutdownTimeout = 10 * time.Second

// Deps carries the collaborators a Server hands to each connection.
type Deps struct {
	// Agent produces model responses. Required.
	Agent agent.Provider

	// TTS synthesizes speech. Required.
	TTS tts.Provider

	// ASR transcribes mic audio. Optional; without it mic messages are
	// rejected with an error message.
	ASR asr.Transcriber

	// History persists chat transcripts. Optional.
	History history.Store

	// Character identifies the avatar persona stamped on responses.
	Character conversation.Character

	// Metrics receives connection gauges and interrupt counts. Defaults
	// to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Health serves the readiness checks. Defaults to a handler with no
	// checkers.
	Health *health.Handler

	// ProactivePromptPath, when set, names a text file whose contents
	// become the prompt for ai-speak-signal turns.
	ProactivePromptPath string

	// ConvOptions are extra options applied to every conversation
	// controller, e.g. merge settings or a custom cancel shield.
	ConvOptions []conversation.Option
}

// Server serves the websocket conversation endpoint and operational routes.
type Server struct {
	addr string
	deps Deps

	proactivePrompt string
}

// New creates a Server listening on addr once Run is called. The proactive
// prompt file, when configured, is read eagerly so a missing file fails at
// startup rather than on the first ai-speak-signal.
func New(addr string, deps Deps) (*Server, error) {
	if deps.Agent == nil || deps.TTS == nil {
		return nil, errors.New("server: agent and tts providers are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Health == nil {
		deps.Health = health.New()
	}

	s := &Server{addr: addr, deps: deps}
	if deps.ProactivePromptPath != "" {
		raw, err := os.ReadFile(deps.ProactivePromptPath)
		if err != nil {
			return nil, fmt.Errorf("server: read proactive prompt: %w", err)
		}
		s.proactivePrompt = strings.TrimSpace(string(raw))
	}
	return s, nil
}

// Handler returns the full HTTP handler: /client-ws, health routes and
// /metrics, wrapped in the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /client-ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.deps.Health.Register(mux)
	return observe.Middleware(s.deps.Metrics)(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", s.addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
