package sync

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/messaging"
	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
)

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_sync_runs_total",
		Help: "Feed synchronization runs by outcome.",
	}, []string{"outcome"})
	syncProductsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_sync_products_created_total",
		Help: "Products created by feed synchronization.",
	})
	syncProductsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_sync_products_updated_total",
		Help: "Products updated by feed synchronization.",
	})
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_sync_duration_seconds",
		Help:    "Duration of feed synchronization runs.",
		Buckets: prometheus.DefBuckets,
	})
)

// Transport fetches the raw supplier feed.
type Transport interface {
	FetchFeedText(ctx context.Context) (string, error)
}

// FeedParser turns raw feed text into normalized records.
type FeedParser interface {
	Parse(text string) ([]models.ProductRecord, error)
}

// CacheInvalidator drops stale catalog entries after a sync.
type CacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Service orchestrates one synchronization run: fetch over SFTP, parse,
// reconcile into the store, then invalidate caches and publish the
// completion event.
type Service struct {
	transport  Transport
	parser     FeedParser
	reconciler *Reconciler
	cache      CacheInvalidator
	publisher  messaging.Publisher
	queue      *retry.Queue
	log        *zap.Logger

	// mu makes runs single-flight: a second caller gets
	// errs.ErrSyncInProgress instead of a concurrent pipeline.
	mu sync.Mutex
}

// NewService wires the pipeline. cache may be nil when Redis is not
// configured; publisher may be a NopPublisher.
func NewService(transport Transport, parser FeedParser, reconciler *Reconciler, cache CacheInvalidator, publisher messaging.Publisher, queue *retry.Queue, log *zap.Logger) *Service {
	return &Service{
		transport:  transport,
		parser:     parser,
		reconciler: reconciler,
		cache:      cache,
		publisher:  publisher,
		queue:      queue,
		log:        log,
	}
}

// retryableSyncError retries transport failures and transient
// persistence failures. Parse errors are deterministic and never
// retried.
func retryableSyncError(err error) bool {
	return errs.IsTransport(err) || errs.IsTransientPersistence(err)
}

// Run executes one synchronization with the feed-sync backoff policy.
// When every attempt fails the run is recorded in the failed-operation
// queue for the periodic drain to pick up.
func (s *Service) Run(ctx context.Context) (models.SyncResult, error) {
	if !s.mu.TryLock() {
		return models.SyncResult{}, errs.ErrSyncInProgress
	}
	defer s.mu.Unlock()

	result, err := retry.Do(ctx, retry.FeedSyncPolicy(retryableSyncError), s.log, "feed-sync", s.runOnce)
	if err != nil {
		syncRuns.WithLabelValues("failure").Inc()
		s.queue.Enqueue(retry.OpFeedSync, nil, err)
		return models.SyncResult{}, err
	}

	syncRuns.WithLabelValues("success").Inc()
	s.afterSuccess(ctx, result)
	return result, nil
}

// RetryHandler returns the drain handler re-running the pipeline for a
// queued failed sync. It runs without the immediate backoff wrapper and
// without re-enqueueing, so the drain loop owns the retry accounting.
func (s *Service) RetryHandler() retry.Handler {
	return func(ctx context.Context, _ []byte) error {
		if !s.mu.TryLock() {
			return errs.ErrSyncInProgress
		}
		defer s.mu.Unlock()

		result, err := s.runOnce(ctx)
		if err != nil {
			return err
		}
		syncRuns.WithLabelValues("success").Inc()
		s.afterSuccess(ctx, result)
		return nil
	}
}

func (s *Service) runOnce(ctx context.Context) (models.SyncResult, error) {
	timer := prometheus.NewTimer(syncDuration)
	defer timer.ObserveDuration()

	text, err := s.transport.FetchFeedText(ctx)
	if err != nil {
		return models.SyncResult{}, err
	}

	records, err := s.parser.Parse(text)
	if err != nil {
		return models.SyncResult{}, err
	}
	s.log.Info("feed parsed", zap.Int("records", len(records)))

	return s.reconciler.Reconcile(ctx, records)
}

// afterSuccess handles post-commit side effects. Both are best effort:
// the sync itself already succeeded.
func (s *Service) afterSuccess(ctx context.Context, result models.SyncResult) {
	syncProductsCreated.Add(float64(result.Created))
	syncProductsUpdated.Add(float64(result.Updated))

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "products:*"); err != nil {
			s.log.Warn("failed to invalidate product cache", zap.Error(err))
		}
	}

	if err := s.publisher.Publish(ctx, messaging.TopicSyncCompleted, result); err != nil {
		s.log.Warn("failed to publish sync completion event", zap.Error(err))
	}
}
