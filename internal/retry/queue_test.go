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

func TestQueueDrainRemovesSuccessfulEntry(t *testing.T) {
	q := NewQueue(zap.NewNop())
	calls := 0
	q.Register(OpFeedSync, func(context.Context, []byte) error {
		calls++
		return nil
	})

	q.Enqueue(OpFeedSync, nil, errors.New("boom"))
	q.Drain(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, q.Status().TotalOperations)
}

func TestQueueDrainIncrementsRetryCountOnFailure(t *testing.T) {
	q := NewQueue(zap.NewNop())
	q.Register(OpOrderConfirmation, func(context.Context, []byte) error {
		return errors.New("still failing")
	})

	q.Enqueue(OpOrderConfirmation, []byte(`{}`), errors.New("boom"))

	q.Drain(context.Background())
	st := q.Status()
	require.Equal(t, 1, st.TotalOperations)
	assert.Equal(t, 1, st.OperationsByType[OpOrderConfirmation])
}

func TestQueueDropsEntryAfterMaxRetries(t *testing.T) {
	q := NewQueue(zap.NewNop())
	calls := 0
	q.Register(OpDropShipNotification, func(context.Context, []byte) error {
		calls++
		return errors.New("permanent")
	})

	q.Enqueue(OpDropShipNotification, nil, errors.New("boom"))

	for i := 0; i < defaultQueueMaxRetries+2; i++ {
		q.Drain(context.Background())
	}

	// Dropped after maxRetries failed attempts, never retried again.
	assert.Equal(t, defaultQueueMaxRetries, calls)
	assert.Equal(t, 0, q.Status().TotalOperations)
}

func TestQueueEntryAtMaxRetriesRemovedWithoutAttempt(t *testing.T) {
	q := NewQueue(zap.NewNop())
	calls := 0
	q.Register(OpFeedSync, func(context.Context, []byte) error {
		calls++
		return nil
	})

	q.Enqueue(OpFeedSync, nil, errors.New("boom"))
	q.mu.Lock()
	q.ops[0].RetryCount = q.ops[0].MaxRetries
	q.mu.Unlock()

	q.Drain(context.Background())

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, q.Status().TotalOperations)
}

func TestQueueUnknownTypeIsKept(t *testing.T) {
	q := NewQueue(zap.NewNop())
	q.Enqueue(OperationType("mystery"), nil, errors.New("boom"))

	q.Drain(context.Background())

	assert.Equal(t, 1, q.Status().TotalOperations)
}

func TestQueueDrainLoopProcessesEntries(t *testing.T) {
	q := NewQueue(zap.NewNop())
	q.Register(OpOrderConfirmation, func(context.Context, []byte) error {
		return nil
	})
	q.Enqueue(OpOrderConfirmation, []byte(`{}`), errors.New("boom"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		q.DrainLoop(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return q.Status().TotalOperations == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain loop did not stop on context cancel")
	}
}

func TestQueueStatusReportsOldestAge(t *testing.T) {
	q := NewQueue(zap.NewNop())
	base := time.Now()
	q.now = func() time.Time { return base }

	q.Enqueue(OpFeedSync, nil, errors.New("first"))

	q.now = func() time.Time { return base.Add(90 * time.Second) }
	q.Enqueue(OpOrderConfirmation, nil, errors.New("second"))

	st := q.Status()
	require.NotNil(t, st.OldestAgeSeconds)
	assert.InDelta(t, 90.0, *st.OldestAgeSeconds, 0.01)
	assert.Equal(t, 2, st.TotalOperations)
	assert.Equal(t, 1, st.OperationsByType[OpFeedSync])
	assert.Equal(t, 1, st.OperationsByType[OpOrderConfirmation])
}

func TestQueueStatusEmpty(t *testing.T) {
	q := NewQueue(zap.NewNop())
	st := q.Status()
	assert.Equal(t, 0, st.TotalOperations)
	assert.Nil(t, st.OldestAgeSeconds)
}
