package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(failures int) (*Breaker, *fakeClock, *[]State) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	var transitions []State
	b := NewBreaker("test", BreakerConfig{
		Failures: failures,
		Cooldown: time.Second,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})
	b.now = clock.now
	return b, clock, &transitions
}

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _, transitions := newTestBreaker(3)
	ctx := context.Background()

	for range 2 {
		assert.ErrorIs(t, b.Do(ctx, fail), errBackend)
	}
	require.NoError(t, b.Do(ctx, succeed), "success resets the count")
	for range 3 {
		assert.ErrorIs(t, b.Do(ctx, fail), errBackend)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []State{StateOpen}, *transitions)

	called := false
	err := b.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_ProbeClosesOnSuccess(t *testing.T) {
	b, clock, transitions := newTestBreaker(1)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	clock.advance(500 * time.Millisecond)
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrCircuitOpen)

	clock.advance(time.Second)
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, *transitions)
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, clock, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	clock.advance(2 * time.Second)

	assert.ErrorIs(t, b.Do(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrCircuitOpen, "cooldown restarts")
}

func TestBreaker_SingleProbe(t *testing.T) {
	b, clock, _ := newTestBreaker(1)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	clock.advance(2 * time.Second)

	err := b.Do(ctx, func(ctx context.Context) error {
		assert.Equal(t, StateHalfOpen, b.State())
		assert.ErrorIs(t, b.Do(ctx, succeed), ErrCircuitOpen, "second caller is shed while probing")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	b, _, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker("defaults", BreakerConfig{})
	assert.Equal(t, 5, b.cfg.Failures)
	assert.Equal(t, 30*time.Second, b.cfg.Cooldown)
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
