// Package retry provides the backoff wrapper used around every
// fallible external operation, plus the in-memory queue that records
// operations whose immediate retries were exhausted.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy controls one use of the backoff wrapper.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	// Retryable decides whether a failure is worth retrying. A nil
	// Retryable retries everything.
	Retryable func(error) bool
}

// Presets per use case. Retryable predicates are supplied at the call
// site, where the error taxonomy is known.
func FeedSyncPolicy(retryable func(error) bool) Policy {
	return Policy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, ExponentialBase: 2, Jitter: true, Retryable: retryable}
}

func PersistencePolicy(retryable func(error) bool) Policy {
	return Policy{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, ExponentialBase: 2, Jitter: true, Retryable: retryable}
}

func EmailPolicy(retryable func(error) bool) Policy {
	return Policy{MaxRetries: 3, BaseDelay: 1500 * time.Millisecond, MaxDelay: 20 * time.Second, ExponentialBase: 2, Jitter: true, Retryable: retryable}
}

func WebhookPolicy(retryable func(error) bool) Policy {
	return Policy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, ExponentialBase: 2, Jitter: true, Retryable: retryable}
}

// delay returns the backoff before retry attempt k (k >= 1):
// min(base * expBase^(k-1), max), optionally scaled by a uniform
// jitter factor in [0.5, 1.0).
func (p Policy) delay(k int) time.Duration {
	base := p.ExponentialBase
	if base <= 0 {
		base = 2
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(base, float64(k-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

// Do invokes op, retrying per the policy. Non-retryable failures
// propagate immediately. When all attempts are exhausted the last
// failure is returned.
func Do[T any](ctx context.Context, p Policy, log *zap.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("operation succeeded after retry",
					zap.String("operation", name),
					zap.Int("attempt", attempt+1))
			}
			return result, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			log.Error("operation failed with non-retryable error",
				zap.String("operation", name),
				zap.Error(err))
			return zero, err
		}

		if attempt == p.MaxRetries {
			break
		}

		wait := p.delay(attempt + 1)
		log.Warn("operation failed, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.MaxRetries+1),
			zap.Duration("backoff", wait),
			zap.Error(err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	log.Error("operation failed after all attempts",
		zap.String("operation", name),
		zap.Int("attempts", p.MaxRetries+1),
		zap.Error(lastErr))
	return zero, lastErr
}
