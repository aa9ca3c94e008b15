package chain

import (
	"log/slog"
	"sync"
	"time"
)

const (
	circuitClosed   = "closed"
	circuitOpen     = "open"
	circuitHalfOpen = "half-open"

	circuitBreakerHalfOpenMax = 1
)

// CircuitBreaker prevents hammering a node that has started failing.
//
// State machine:
//   - Closed (normal): all calls pass. On failure, increment counter.
//     If counter >= threshold → Open.
//   - Open (tripped): all calls blocked (ErrCircuitOpen).
//     After cooldown elapsed → Half-Open.
//   - Half-Open (testing): allow 1 call through.
//     Success → Closed (reset counter). Failure → Open (restart cooldown).
type CircuitBreaker struct {
	mu               sync.Mutex
	state            string
	consecutiveFails int
	threshold        int
	cooldown         time.Duration
	lastFailure      time.Time
	halfOpenCount    int
}

// NewCircuitBreaker creates a circuit breaker with the given trip threshold
// and open-state cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:     circuitClosed,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call should be let through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return true

	case circuitOpen:
		if time.Since(cb.lastFailure) >= cb.cooldown {
			slog.Debug("node circuit breaker transitioning to half-open", "consecutiveFails", cb.consecutiveFails)
			cb.state = circuitHalfOpen
			cb.halfOpenCount = 1 // this call is the half-open probe
			return true
		}
		return false

	case circuitHalfOpen:
		if cb.halfOpenCount < circuitBreakerHalfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess resets the breaker to closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	previous := cb.state
	cb.consecutiveFails = 0
	cb.state = circuitClosed
	cb.halfOpenCount = 0

	if previous != circuitClosed {
		slog.Info("node circuit breaker closed after success", "previousState", previous)
	}
}

// RecordFailure records a failed call, possibly tripping the breaker open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = time.Now()

	if cb.state == circuitHalfOpen {
		slog.Warn("node circuit breaker reopened after half-open failure", "consecutiveFails", cb.consecutiveFails)
		cb.state = circuitOpen
		cb.halfOpenCount = 0
		return
	}

	if cb.consecutiveFails >= cb.threshold {
		slog.Warn("node circuit breaker tripped open", "consecutiveFails", cb.consecutiveFails, "threshold", cb.threshold)
		cb.state = circuitOpen
		cb.halfOpenCount = 0
	}
}

// State returns the current state name, for health reporting.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current failure streak.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}
