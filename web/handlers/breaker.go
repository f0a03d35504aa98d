package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
)

// errSimulatedFailure is recorded against the breaker by the test hook.
var errSimulatedFailure = errors.New("simulated downstream failure")

// BreakerHandler exposes the circuit breaker probe and test hook.
type BreakerHandler struct {
	breaker *engine.CircuitBreaker
}

// NewBreakerHandler creates a new BreakerHandler instance.
func NewBreakerHandler(breaker *engine.CircuitBreaker) *BreakerHandler {
	return &BreakerHandler{breaker: breaker}
}

// PostProbe handles POST /api/breaker/probe. A normal probe runs a no-op
// through the breaker; action "trigger_failure" records a failure sample so
// operators can exercise the trip path without breaking a real dependency.
func (h *BreakerHandler) PostProbe(w http.ResponseWriter, r *http.Request) {
	var req BreakerProbeRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	var err error
	if req.Action == "trigger_failure" {
		err = h.breaker.Execute(r.Context(), func() error {
			return errSimulatedFailure
		})
	} else {
		err = h.breaker.Execute(r.Context(), func() error {
			return nil
		})
	}

	respondJSON(w, http.StatusOK, BreakerProbeResponse{
		CircuitBreakerActive: h.breaker.State() != "closed",
		State:                h.breaker.State(),
		ResponseTimeMs:       time.Since(start).Milliseconds(),
		FailureCount:         h.breaker.ConsecutiveFailures(),
		FallbackUsed:         errors.Is(err, engine.ErrCircuitOpen),
	})
}
