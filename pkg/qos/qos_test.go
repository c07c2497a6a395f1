package qos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/qos"
)

func TestClassify_RateLimitIsTransient(t *testing.T) {
	err := errors.New("HTTP 429 rate limit exceeded")
	assert.Equal(t, errorx.ExternalTransient, qos.Classify(err))
	assert.True(t, qos.IsRetryable(err))
}

func TestClassify_UnauthorizedIsFatal(t *testing.T) {
	err := errors.New("HTTP 401 unauthorized")
	assert.Equal(t, errorx.ExternalFatal, qos.Classify(err))
	assert.False(t, qos.IsRetryable(err))
}

func TestDo_RetriesTransientUntilExhausted(t *testing.T) {
	attempts := 0
	policy := qos.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}

	err := qos.Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return errors.New("rate limit exceeded")
	})

	require.Error(t, err)
	var exhausted *qos.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, attempts)
}

func TestDo_DoesNotRetryFatalErrors(t *testing.T) {
	attempts := 0
	policy := qos.Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}

	err := qos.Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return errors.New("HTTP 401 unauthorized")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	policy := qos.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	err := qos.Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("too many requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
