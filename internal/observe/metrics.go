// Package observe provides observability primitives for lunavoice:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// via a Prometheus bridge registered by [InitProvider], so the standard
// /metrics endpoint keeps working. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lunavoice metrics.
const meterName = "github.com/lunavoice/lunavoice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ASRDuration tracks speech recognition latency per utterance.
	ASRDuration metric.Float64Histogram

	// ChatDuration tracks model response latency from prompt submission to
	// stream completion.
	ChatDuration metric.Float64Histogram

	// SynthDuration tracks text-to-speech synthesis latency per sentence.
	SynthDuration metric.Float64Histogram

	// LimiterWait tracks time spent queued behind the TTS rate limiter.
	LimiterWait metric.Float64Histogram

	// TurnDuration tracks full conversation turn latency, input to
	// chain-end.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// Payloads counts audio payloads sent to clients. Use with attribute:
	//   attribute.String("kind", "audio"|"silent"|"merged")
	Payloads metric.Int64Counter

	// Turns counts conversation turns by source. Use with attribute:
	//   attribute.String("source", "text"|"voice"|"proactive")
	Turns metric.Int64Counter

	// Interrupts counts barge-in interruptions.
	Interrupts metric.Int64Counter

	// ProviderErrors counts provider failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveClients tracks currently connected websocket clients.
	ActiveClients metric.Int64UpDownCounter

	// ActiveTurns tracks conversation turns currently in flight.
	ActiveTurns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive voice latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.ASRDuration, "lunavoice.asr.duration", "Latency of speech recognition per utterance."},
		{&met.ChatDuration, "lunavoice.chat.duration", "Latency of the model response stream."},
		{&met.SynthDuration, "lunavoice.synth.duration", "Latency of speech synthesis per sentence."},
		{&met.LimiterWait, "lunavoice.synth.limiter_wait", "Time spent queued behind the TTS rate limiter."},
		{&met.TurnDuration, "lunavoice.turn.duration", "Full conversation turn latency."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	if met.Payloads, err = m.Int64Counter("lunavoice.audio.payloads",
		metric.WithDescription("Audio payloads sent to clients by kind."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("lunavoice.turns",
		metric.WithDescription("Conversation turns by input source."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("lunavoice.interrupts",
		metric.WithDescription("Barge-in interruptions."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lunavoice.provider.errors",
		metric.WithDescription("Provider failures by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveClients, err = m.Int64UpDownCounter("lunavoice.active_clients",
		metric.WithDescription("Currently connected websocket clients."),
	); err != nil {
		return nil, err
	}
	if met.ActiveTurns, err = m.Int64UpDownCounter("lunavoice.active_turns",
		metric.WithDescription("Conversation turns currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("lunavoice.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which should not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordPayload records one sent audio payload of the given kind
// ("audio", "silent" or "merged").
func (m *Metrics) RecordPayload(ctx context.Context, kind string) {
	m.Payloads.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTurn records one started conversation turn by input source
// ("text", "voice" or "proactive").
func (m *Metrics) RecordTurn(ctx context.Context, source string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordInterrupt records one barge-in interruption.
func (m *Metrics) RecordInterrupt(ctx context.Context) {
	m.Interrupts.Add(ctx, 1)
}

// RecordProviderError records a provider failure with the standard
// attribute set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
