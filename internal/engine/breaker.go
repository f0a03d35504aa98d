package engine

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"github.com/sony/gobreaker"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
)

// ErrCircuitOpen is returned when the circuit breaker is in open state and
// rejects work to prevent cascading failures. Callers treat it as a degraded
// outcome, not a processing failure.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker wraps gobreaker to shield the request path from a failing
// processing pipeline. States: closed (normal), open (short-circuiting) and
// half-open (single probe).
//
// The breaker is process-wide: it protects the shared downstream dependency,
// not per-user quotas. It trips after MaxFailures consecutive failures, stays
// open for the cool-down window, then allows one probe. A probe success
// closes the circuit and resets the failure counter; a probe failure re-opens
// it and restarts the cool-down.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker

	// trips counts closed-to-open transitions for the metrics snapshot.
	trips atomic.Uint64
}

// NewCircuitBreaker creates a circuit breaker from configuration.
func NewCircuitBreaker(cfg config.BreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}

	settings := gobreaker.Settings{
		Name:        "MemoryPipeline",
		MaxRequests: 1, // single half-open probe
		Interval:    0, // never clear counts while closed
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				cb.trips.Add(1)
			}
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	cb.breaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// Execute runs fn through the breaker. When the circuit is open (and the
// cool-down has not elapsed) fn is never invoked and ErrCircuitOpen is
// returned immediately, which keeps a failing backend from adding
// any latency to the request path.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := cb.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current breaker state: "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ConsecutiveFailures returns the current consecutive failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() uint32 {
	return cb.breaker.Counts().ConsecutiveFailures
}

// Trips returns how many times the circuit has opened.
func (cb *CircuitBreaker) Trips() uint64 {
	return cb.trips.Load()
}
