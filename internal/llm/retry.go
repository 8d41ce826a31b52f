package llm

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryConfig controls retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig is used when no retry settings are configured.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  2,
	InitialWait: time.Second,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// RetryDo retries fn with exponential backoff while it fails with a retryable
// ProviderError. Context cancellation stops immediately.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}

		if attempt < rc.MaxRetries {
			wait := time.Duration(float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(attempt)))
			if rc.MaxWait > 0 && wait > rc.MaxWait {
				wait = rc.MaxWait
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, lastErr
			}
		}
	}
	return zero, lastErr
}

func isRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
