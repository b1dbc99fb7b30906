package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Breaker.Do while calls are being shed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase a Breaker is in.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Breaker opens and when it probes again.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures int
	// Cooldown is how long the breaker stays open before one probe call is
	// let through.
	Cooldown time.Duration
	// OnStateChange, if set, is called after every transition with the
	// breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// Breaker sheds calls to a backend that keeps failing. After Failures
// consecutive errors it opens and rejects calls for Cooldown, then admits a
// single probe: success closes it, failure opens it again.
//
// Cancellation of the caller's context is not counted as a backend failure.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name: name,
		cfg:  cfg,
		now:  time.Now,
		log:  slog.Default().With("component", "breaker", "name", name),
	}
}

// Do runs fn unless the breaker is shedding calls, in which case it returns
// an error wrapping ErrCircuitOpen without calling fn.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(ctx, err)
	return err
}

// State reports the current phase. An open breaker whose cooldown has
// elapsed still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			b.mu.Unlock()
			return fmt.Errorf("%s: %w (retry in %v)", b.name, ErrCircuitOpen, wait.Round(time.Millisecond))
		}
		b.probing = true
		b.transition(StateHalfOpen)
		return nil
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return fmt.Errorf("%s: %w (probe in flight)", b.name, ErrCircuitOpen)
		}
		b.probing = true
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.probing = false
	}
	switch {
	case err == nil:
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
			return
		}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// the caller gave up; says nothing about the backend
	default:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.Failures {
			b.openedAt = b.now()
			if b.state != StateOpen {
				b.log.Warn("circuit opened", "consecutive_failures", b.failures, "error", err)
				b.transition(StateOpen)
				return
			}
		}
	}
	b.mu.Unlock()
}

// transition must be called with b.mu held; it releases the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	b.mu.Unlock()
	if from == StateOpen || to == StateClosed {
		b.log.Info("circuit state changed", "from", from.String(), "to", to.String())
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
