package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTransient = errors.New("transient failure")
var errFatal = errors.New("fatal failure")

func fastPolicy(maxRetries int, retryable func(error) bool) Policy {
	return Policy{
		MaxRetries:      maxRetries,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2,
		Retryable:       retryable,
	}
}

func TestDoSucceedsOnLastAllowedAttempt(t *testing.T) {
	const maxRetries = 3
	calls := 0

	result, err := Do(context.Background(), fastPolicy(maxRetries, nil), zap.NewNop(), "test",
		func(context.Context) (string, error) {
			calls++
			if calls <= maxRetries {
				return "", errTransient
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, maxRetries+1, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), fastPolicy(2, nil), zap.NewNop(), "test",
		func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDoNonRetryablePropagatesImmediately(t *testing.T) {
	calls := 0
	retryable := func(err error) bool { return errors.Is(err, errTransient) }

	_, err := Do(context.Background(), fastPolicy(3, retryable), zap.NewNop(), "test",
		func(context.Context) (int, error) {
			calls++
			return 0, errFatal
		})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDoFirstAttemptSuccessMakesOneCall(t *testing.T) {
	calls := 0

	result, err := Do(context.Background(), fastPolicy(3, nil), zap.NewNop(), "test",
		func(context.Context) (int, error) {
			calls++
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{MaxRetries: 5, BaseDelay: time.Hour, ExponentialBase: 2}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, zap.NewNop(), "test", func(context.Context) (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, ExponentialBase: 2}

	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 4*time.Second, p.delay(3))
	assert.Equal(t, 4*time.Second, p.delay(10))
}

func TestDelayJitterRange(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, ExponentialBase: 2, Jitter: true}

	for i := 0; i < 100; i++ {
		d := p.delay(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, time.Second)
	}
}
