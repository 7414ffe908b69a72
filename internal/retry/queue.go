package retry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OperationType identifies what a queued failed operation should
// re-run when drained.
type OperationType string

const (
	OpFeedSync              OperationType = "feed-sync"
	OpDropShipNotification  OperationType = "drop-ship-notification"
	OpOrderConfirmation     OperationType = "order-confirmation"
	defaultQueueMaxRetries                = 5
)

// FailedOperation is one entry awaiting reprocessing.
type FailedOperation struct {
	Type       OperationType `json:"type"`
	Payload    []byte        `json:"payload,omitempty"`
	LastError  string        `json:"last_error"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	RetryCount int           `json:"retry_count"`
	MaxRetries int           `json:"max_retries"`
}

// Handler re-runs one kind of failed operation from its payload.
type Handler func(ctx context.Context, payload []byte) error

// QueueStatus summarizes pending entries.
type QueueStatus struct {
	TotalOperations  int                   `json:"total_operations"`
	OperationsByType map[OperationType]int `json:"operations_by_type"`
	OldestAgeSeconds *float64              `json:"oldest_age_seconds"`
}

// Queue holds failed operations in memory for best-effort later
// reprocessing. It is process-local and lost on restart; that data
// loss is accepted behavior. The mutex serializes concurrent drains
// so no entry is double-processed.
type Queue struct {
	mu       sync.Mutex
	ops      []*FailedOperation
	handlers map[OperationType]Handler
	log      *zap.Logger
	now      func() time.Time
}

// NewQueue returns an empty failed-operation queue.
func NewQueue(log *zap.Logger) *Queue {
	return &Queue{
		handlers: make(map[OperationType]Handler),
		log:      log,
		now:      time.Now,
	}
}

// Register installs the handler that drains entries of the given type.
func (q *Queue) Register(t OperationType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[t] = h
}

// Enqueue appends a failed operation for later reprocessing.
func (q *Queue) Enqueue(t OperationType, payload []byte, opErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	msg := ""
	if opErr != nil {
		msg = opErr.Error()
	}
	q.ops = append(q.ops, &FailedOperation{
		Type:       t,
		Payload:    payload,
		LastError:  msg,
		EnqueuedAt: q.now(),
		MaxRetries: defaultQueueMaxRetries,
	})

	q.log.Info("added failed operation to retry queue",
		zap.String("type", string(t)),
		zap.String("error", msg))
}

// Drain attempts every pending entry once. Successful entries are
// removed; failed entries get their retry count bumped and are dropped
// permanently once it reaches the maximum. Entries already at the
// maximum are removed without another attempt.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return
	}
	q.log.Info("processing failed operations", zap.Int("pending", len(q.ops)))

	var remaining []*FailedOperation
	for _, op := range q.ops {
		if op.RetryCount >= op.MaxRetries {
			q.log.Error("operation failed permanently",
				zap.String("type", string(op.Type)),
				zap.Int("retries", op.RetryCount))
			continue
		}

		handler, ok := q.handlers[op.Type]
		if !ok {
			q.log.Warn("unknown operation type in retry queue",
				zap.String("type", string(op.Type)))
			remaining = append(remaining, op)
			continue
		}

		if err := handler(ctx, op.Payload); err != nil {
			op.RetryCount++
			op.LastError = err.Error()
			if op.RetryCount >= op.MaxRetries {
				q.log.Error("operation failed permanently",
					zap.String("type", string(op.Type)),
					zap.Int("retries", op.RetryCount),
					zap.Error(err))
				continue
			}
			remaining = append(remaining, op)
			continue
		}

		q.log.Info("successfully retried operation",
			zap.String("type", string(op.Type)))
	}
	q.ops = remaining
}

// DrainLoop drains the queue on a fixed interval until the context is
// cancelled.
func (q *Queue) DrainLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Status reports total pending entries, counts grouped by type and the
// age of the oldest entry.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := QueueStatus{
		TotalOperations:  len(q.ops),
		OperationsByType: make(map[OperationType]int),
	}
	for _, op := range q.ops {
		status.OperationsByType[op.Type]++
	}
	if len(q.ops) > 0 {
		oldest := q.ops[0].EnqueuedAt
		for _, op := range q.ops[1:] {
			if op.EnqueuedAt.Before(oldest) {
				oldest = op.EnqueuedAt
			}
		}
		age := q.now().Sub(oldest).Seconds()
		status.OldestAgeSeconds = &age
	}
	return status
}
