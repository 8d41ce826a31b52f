package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

func TestRetryDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	out, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
		calls++
		if calls < 3 {
			return "", unavailable(ProviderOpenAI, 503, true, "overloaded", nil)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestRetryDoStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
		calls++
		return "", classifyStatus(ProviderOpenAI, 401, "bad key", nil)
	})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, calls)
}

func TestRetryDoGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetry, func() (int, error) {
		calls++
		return 0, unavailable(ProviderGemini, 500, true, "boom", nil)
	})

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 3, calls)
}

func TestRetryDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryDo(ctx, fastRetry, func() (int, error) {
		return 0, errors.New("never called")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
