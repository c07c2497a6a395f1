package qos

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a process-local token-bucket rate limiter for use at the
// action-execution boundary; Do and action.Runtime do not call it, so a
// caller that wants rate limiting calls Wait itself. Simplified from the
// teacher's cluster-aware
// AdaptiveRateLimiter down to the single-process case: a Process exclusively
// owns its blackboard and, by extension, its own action dispatch (see
// DESIGN.md's note on the dropped goa.design/pulse dependency).
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter constructs a Limiter allowing burst immediate executions and
// refilling at ratePerSecond thereafter.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
