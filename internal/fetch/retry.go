package fetch

import (
	"context"
	"math"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
)

// Retry defaults, applied when a source's retry config leaves fields unset.
const (
	DefaultMaxAttempts       = 3
	DefaultBackoffMultiplier = 2.0
	DefaultMaxDelay          = 10 * time.Second
	DefaultBaseDelay         = 500 * time.Millisecond
)

// retrySettings is the resolved retry policy for one execution.
type retrySettings struct {
	maxAttempts int
	multiplier  float64
	maxDelay    time.Duration
	baseDelay   time.Duration
}

func resolveRetry(cfg model.RetryConfig) retrySettings {
	s := retrySettings{
		maxAttempts: cfg.MaxAttempts,
		multiplier:  cfg.BackoffMultiplier,
		maxDelay:    cfg.MaxDelay,
		baseDelay:   DefaultBaseDelay,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.multiplier <= 0 {
		s.multiplier = DefaultBackoffMultiplier
	}
	if s.maxDelay <= 0 {
		s.maxDelay = DefaultMaxDelay
	}
	return s
}

// backoffDelay returns min(base * multiplier^(attempt-1), maxDelay) for a
// 1-based attempt number.
func (s retrySettings) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(s.baseDelay) * math.Pow(s.multiplier, float64(attempt-1)))
	if d > s.maxDelay || d <= 0 {
		return s.maxDelay
	}
	return d
}

// ExecuteWithRetry runs op with bounded retries and exponential backoff.
// Only transient failures consume further attempts; non-transient ones fail
// fast. Context cancellation aborts the backoff sleep.
func ExecuteWithRetry(ctx context.Context, cfg model.RetryConfig, op func(context.Context) error) error {
	s := resolveRetry(cfg)

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !Transient(Classify(lastErr)) {
			return lastErr
		}
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoffDelay(attempt)):
		}
	}
	return lastErr
}
