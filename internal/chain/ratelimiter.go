package chain

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token-bucket limiter guarding calls to the configured
// Bitcoin node, so a misbehaving scanner loop cannot overwhelm it.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps calls per second, spread evenly (burst 1).
func NewRateLimiter(rps int) *RateLimiter {
	slog.Debug("node rate limiter created", "rps", rps)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until a call is permitted or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Warn("node rate limiter wait cancelled", "error", err)
		return err
	}
	return nil
}
