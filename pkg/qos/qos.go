// Package qos implements per-action quality-of-service: retry/backoff
// policy and the rate-limit/fatal-error classification from spec.md §7.
// Retry/backoff shape is grounded on the teacher's runtime/a2a/retry
// package; rate-limit recognition implements the §7 taxonomy verbatim.
package qos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/embabel/agent-core-go/pkg/errorx"
)

// Policy configures retry behavior for a single action invocation.
type Policy struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// 0 or 1 means no retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the computed backoff delay.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff growth factor.
	Multiplier float64
	// Jitter adds +/- this fraction of randomness to each backoff delay.
	Jitter float64
	// Timeout bounds a single attempt; zero means no per-attempt timeout.
	Timeout time.Duration
}

// DefaultPolicy returns a conservative default QoS policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// rateLimitMarkers is the case-insensitive substring taxonomy from
// spec.md §7 used to recognize rate-limit errors.
var rateLimitMarkers = []string{
	"rate limit",
	"too many requests",
	"quota exceeded",
	"rate-limited",
	"429",
}

// IsRateLimited reports whether err's message matches any of the §7
// rate-limit markers, case-insensitively.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify maps an arbitrary error from an action body into the §7
// taxonomy: ExternalTransient for rate-limit/network/5xx-shaped failures
// (retryable), Cancelled for context.Canceled, and ExternalFatal for every
// other error (not retryable). Errors that are already *errorx.Error keep
// their existing Kind.
func Classify(err error) errorx.Kind {
	if err == nil {
		return ""
	}
	if kind, ok := errorx.KindOf(err); ok {
		return kind
	}
	if IsRateLimited(err) {
		return errorx.ExternalTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errorx.ExternalTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errorx.ExternalTransient
	}
	if errors.Is(err, context.Canceled) {
		return errorx.Cancelled
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"http 5", "internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(msg, marker) {
			return errorx.ExternalTransient
		}
	}
	for _, marker := range []string{"http 401", "unauthorized", "http 403", "forbidden", "http 400", "bad request"} {
		if strings.Contains(msg, marker) {
			return errorx.ExternalFatal
		}
	}
	return errorx.ExternalFatal
}

// IsRetryable reports whether an error classified by Classify should be
// retried under this policy.
func IsRetryable(err error) bool {
	return Classify(err) == errorx.ExternalTransient
}

// ExhaustedError is returned by Do when every attempt failed.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("qos: retries exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastError)
}

// Unwrap returns the last underlying error.
func (e *ExhaustedError) Unwrap() error { return e.LastError }

// Do executes fn, retrying on transient failures per p up to
// p.MaxAttempts, with exponential, jittered backoff between attempts.
// Non-transient failures (per Classify) return immediately without
// consuming further attempts.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt >= attempts {
			break
		}

		backoff := computeBackoff(p, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return &ExhaustedError{Attempts: attempts, TotalDuration: time.Since(start), LastError: lastErr}
}

func computeBackoff(p Policy, attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	backoff := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		backoff += backoff * p.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}
