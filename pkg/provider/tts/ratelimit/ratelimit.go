// Package ratelimit implements the call policy for TTS backends that allow
// only one in-flight request and a fixed number of requests per rolling
// window.
//
// Two independent constraints are enforced, in a fixed order:
//
//  1. Concurrency: a single request slot, held from Acquire to Release.
//  2. Sliding window: at most maxCalls dispatch timestamps within the last
//     window duration, plus a small safety buffer so a request does not land
//     exactly on the provider's boundary.
//
// The slot is taken first; the window check and the dispatch timestamp then
// happen under one lock, so concurrent acquirers cannot admit each other on
// a stale window. Timestamps are recorded for every dispatched call,
// including ones that later fail, because the provider counts those against
// the quota too.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSafetyBuffer = 500 * time.Millisecond

// Option configures a Limiter.
type Option func(*Limiter)

// WithSafetyBuffer sets the extra wait added past the window boundary.
// Default 500ms.
func WithSafetyBuffer(d time.Duration) Option {
	return func(l *Limiter) { l.buffer = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the wait function, for tests. The function must
// return ctx.Err() when the context is cancelled before d elapses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// Limiter enforces the combined window and concurrency policy.
type Limiter struct {
	maxCalls int
	window   time.Duration
	buffer   time.Duration

	mu    sync.Mutex
	calls []time.Time

	slot chan struct{}

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter allowing maxCalls dispatches per window with a
// single concurrent request.
func New(maxCalls int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		maxCalls: maxCalls,
		window:   window,
		buffer:   defaultSafetyBuffer,
		slot:     make(chan struct{}, 1),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Acquire blocks until the concurrency slot is free and the sliding window
// admits a new request, then records the dispatch timestamp. The window
// check and the timestamp append happen under the same lock while the slot
// is held, so a burst of concurrent acquirers is paced one by one. Every
// successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		l.mu.Lock()
		wait := l.windowWaitLocked()
		if wait <= 0 {
			l.calls = append(l.calls, l.now())
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		slog.Info("rate limit window full, waiting", "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			l.Release()
			return err
		}
	}
}

// Release frees the concurrency slot.
func (l *Limiter) Release() {
	select {
	case <-l.slot:
	default:
	}
}

// windowWaitLocked returns how long to wait before the window admits
// another call, or zero if it already does. Caller holds l.mu.
func (l *Limiter) windowWaitLocked() time.Duration {
	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.calls[:0]
	for _, t := range l.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	if len(l.calls) < l.maxCalls {
		return 0
	}
	return l.calls[0].Add(l.window + l.buffer).Sub(now)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
