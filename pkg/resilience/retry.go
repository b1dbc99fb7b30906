// Package resilience guards the optional backing services (PostgreSQL,
// Redis): exponential-backoff retry for connecting, and a circuit breaker for
// calls made while serving queries.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff describes how often and how patiently an operation is retried.
// Zero fields take the defaults noted on them.
type Backoff struct {
	Attempts int           // total tries, default 3
	Initial  time.Duration // first delay, default 100ms
	Max      time.Duration // delay cap, default 5s
	Factor   float64       // growth per attempt, default 2
	Jitter   float64       // ± fraction of each delay, default 0.1
	// Permanent, if set, reports errors that retrying cannot fix.
	Permanent func(error) bool
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	if b.Factor < 1 {
		b.Factor = 2
	}
	if b.Jitter <= 0 || b.Jitter >= 1 {
		b.Jitter = 0.1
	}
	return b
}

// Delay is the pause after the given failed attempt (1-based), jittered and
// capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.normalized()
	d := float64(b.Initial)
	for i := 1; i < attempt && d < float64(b.Max); i++ {
		d *= b.Factor
	}
	d += d * b.Jitter * (2*rand.Float64() - 1)
	return min(time.Duration(d), b.Max)
}

// Retry calls fn until it succeeds, fails permanently, runs out of attempts
// or ctx ends. The returned error wraps the last failure.
func Retry(ctx context.Context, name string, b Backoff, fn func(context.Context) error) error {
	b = b.normalized()
	log := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				log.Info("recovered", "attempt", attempt)
			}
			return nil
		}
		if b.Permanent != nil && b.Permanent(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: gave up after %d attempts: %w", name, attempt, err)
		}

		delay := b.Delay(attempt)
		log.Warn("attempt failed", "attempt", attempt, "of", b.Attempts, "retry_in", delay, "error", err)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), err)
		}
	}
}
