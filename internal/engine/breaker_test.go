package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
)

var errBackend = errors.New("backend down")

func newTestBreaker(maxFailures uint32, coolDown time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(config.BreakerConfig{
		MaxFailures: maxFailures,
		CoolDown:    coolDown,
	})
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, "closed", cb.State())
		err := cb.Execute(ctx, func() error { return errBackend })
		require.ErrorIs(t, err, errBackend)
	}

	assert.Equal(t, "open", cb.State())
	assert.Equal(t, uint64(1), cb.Trips())

	// While open, the function is never invoked.
	invoked := false
	err := cb.Execute(ctx, func() error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))

	// Two failures after the reset is still below the threshold of three.
	assert.Equal(t, "closed", cb.State())
}

func TestBreaker_RecoversAfterCoolDown(t *testing.T) {
	cb := newTestBreaker(2, 50*time.Millisecond)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.Equal(t, "open", cb.State())

	time.Sleep(80 * time.Millisecond)

	// One successful probe closes the circuit and resets the counter.
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
	assert.Equal(t, uint32(0), cb.ConsecutiveFailures())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	cb := newTestBreaker(2, 50*time.Millisecond)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.Error(t, cb.Execute(ctx, func() error { return errBackend }))
	require.Equal(t, "open", cb.State())

	time.Sleep(80 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(ctx, func() error { return errBackend }), errBackend)
	assert.Equal(t, "open", cb.State())
	assert.Equal(t, uint64(2), cb.Trips())
}

func TestBreaker_CancelledContext(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoked := false
	err := cb.Execute(ctx, func() error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, invoked)
}
