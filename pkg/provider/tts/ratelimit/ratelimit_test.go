package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lunavoice/lunavoice/pkg/provider/tts/ratelimit"
)

// fakeClock advances only when sleep is called, so window behavior can be
// tested without real waiting. Safe for concurrent acquirers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.Advance(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(maxCalls int, window time.Duration) (*ratelimit.Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := ratelimit.New(maxCalls, window,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleep(clock.Sleep),
	)
	return l, clock
}

func TestSeventhCallWaitsForWindow(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(6, 60*time.Second)
	start := clock.Now()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		l.Release()
		clock.Advance(time.Second)
	}

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("seventh call: %v", err)
	}
	l.Release()

	if elapsed := clock.Now().Sub(start); elapsed < 60*time.Second {
		t.Errorf("seventh call dispatched after %v, want >= 60s", elapsed)
	}
}

func TestWindowAdmitsAfterExpiry(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(2, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		l.Release()
	}

	clock.Advance(11 * time.Second)
	before := clock.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("call after expiry: %v", err)
	}
	l.Release()
	if clock.Now() != before {
		t.Errorf("call after window expiry slept unnecessarily")
	}
}

func TestConcurrencySlotSerializes(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(10, time.Minute)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	second := make(chan error, 1)
	go func() {
		c, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		second <- l.Acquire(c)
	}()

	if err := <-second; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second acquire while slot held: want deadline exceeded, got %v", err)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
	l.Release()
}

func TestConcurrentBurstRespectsWindow(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(6, 60*time.Second)
	start := clock.Now()
	ctx := context.Background()

	// Eight goroutines race Acquire at once. The window admits six; the
	// remaining two must be pushed past the window boundary instead of
	// being admitted on a check made before the first six dispatched.
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("acquire %d: %v", i, err)
				return
			}
			l.Release()
		}()
	}
	wg.Wait()

	if elapsed := clock.Now().Sub(start); elapsed < 60*time.Second {
		t.Errorf("8 dispatches within %v, want the 7th to wait >= 60s", elapsed)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	l := ratelimit.New(1, time.Minute,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleep(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}),
	)

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	l.Release()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
