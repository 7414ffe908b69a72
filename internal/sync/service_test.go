package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/messaging"
	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/feed"
	"github.com/jonnyallum/blmotorcyclesltd/internal/pricing"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
)

// fakeStore is an in-memory ProductStore keyed by SKU.
type fakeStore struct {
	products map[string]*models.Product
	nextID   int64

	begins    int
	commits   int
	rollbacks int

	failCreate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[string]*models.Product), nextID: 1}
}

func (f *fakeStore) BeginTx(ctx context.Context) (context.Context, error) {
	f.begins++
	return ctx, nil
}

func (f *fakeStore) CommitTx(context.Context) error {
	f.commits++
	return nil
}

func (f *fakeStore) RollbackTx(context.Context) error {
	f.rollbacks++
	return nil
}

func (f *fakeStore) GetProductBySKU(_ context.Context, sku string) (*models.Product, error) {
	p, ok := f.products[sku]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (f *fakeStore) CreateProduct(_ context.Context, p *models.Product) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	p.ID = f.nextID
	f.nextID++
	clone := *p
	f.products[p.SKU] = &clone
	return nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, p *models.Product) error {
	clone := *p
	f.products[p.SKU] = &clone
	return nil
}

type fakeTransport struct {
	text  string
	err   error
	calls int
}

func (f *fakeTransport) FetchFeedText(context.Context) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeCache struct {
	patterns []string
}

func (f *fakeCache) DeleteByPattern(_ context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

type recordingPublisher struct {
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ interface{}) error {
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func newTestService(store *fakeStore, transport *fakeTransport, cache CacheInvalidator, pub messaging.Publisher, queue *retry.Queue) *Service {
	log := zap.NewNop()
	parser := feed.NewParser(pricing.NewRule(0, 0))
	return NewService(transport, parser, NewReconciler(store, log), cache, pub, queue, log)
}

const feedCSV = "SKU,Name,Price,Stock,Category\n" +
	"BRK001,Brake Pads Front,30.66,25,\n" +
	"CHN010,Chain and Sprocket Kit,45.00,0,Chain Drive\n"

func TestServiceRunCreatesAndUpdates(t *testing.T) {
	store := newFakeStore()
	store.products["BRK001"] = &models.Product{ID: 7, SKU: "BRK001", Name: "Old Name", StockQuantity: 1}
	cache := &fakeCache{}
	pub := &recordingPublisher{}
	queue := retry.NewQueue(zap.NewNop())
	svc := newTestService(store, &fakeTransport{text: feedCSV}, cache, pub, queue)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SyncResult{Created: 1, Updated: 1, Total: 2}, result)
	assert.Equal(t, 1, store.commits)
	assert.Zero(t, store.rollbacks)

	// Existing product keeps its identity but picks up feed values.
	brk := store.products["BRK001"]
	require.NotNil(t, brk)
	assert.Equal(t, int64(7), brk.ID)
	assert.Equal(t, "Brake Pads Front", brk.Name)
	assert.InDelta(t, 30.66, brk.CostPrice, 1e-9)
	assert.InDelta(t, 51.99, brk.SellingPrice, 1e-9)
	assert.Equal(t, 25, brk.StockQuantity)
	assert.True(t, brk.InStock)

	chn := store.products["CHN010"]
	require.NotNil(t, chn)
	assert.Equal(t, "Transmission & Clutch", chn.Category)
	assert.False(t, chn.InStock)
	assert.Equal(t, models.SupplierBikeIt, chn.Supplier)

	assert.Equal(t, []string{"products:*"}, cache.patterns)
	assert.Equal(t, []string{messaging.TopicSyncCompleted}, pub.topics)
	assert.Zero(t, queue.Status().TotalOperations)
}

func TestServiceRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	queue := retry.NewQueue(zap.NewNop())
	svc := newTestService(store, &fakeTransport{text: feedCSV}, nil, messaging.NopPublisher{}, queue)

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Created: 2, Updated: 0, Total: 2}, first)

	before := make(map[string]models.Product)
	for sku, p := range store.products {
		before[sku] = *p
	}

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Created: 0, Updated: 2, Total: 2}, second)

	for sku, p := range store.products {
		assert.Equal(t, before[sku], *p, "sku %s changed on second run", sku)
	}
}

func TestServiceRunParseErrorNotRetried(t *testing.T) {
	store := newFakeStore()
	queue := retry.NewQueue(zap.NewNop())
	transport := &fakeTransport{text: ""}
	svc := newTestService(store, transport, nil, messaging.NopPublisher{}, queue)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsParse(err))
	assert.Equal(t, 1, transport.calls, "parse errors must not be retried")

	// The exhausted run still lands in the failed-operation queue.
	status := queue.Status()
	assert.Equal(t, 1, status.TotalOperations)
	assert.Equal(t, 1, status.OperationsByType[retry.OpFeedSync])
}

func TestServiceSingleFlight(t *testing.T) {
	store := newFakeStore()
	queue := retry.NewQueue(zap.NewNop())
	svc := newTestService(store, &fakeTransport{text: feedCSV}, nil, messaging.NopPublisher{}, queue)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrSyncInProgress)
}

func TestRetryHandlerDrainsQueuedSync(t *testing.T) {
	store := newFakeStore()
	queue := retry.NewQueue(zap.NewNop())
	transport := &fakeTransport{text: feedCSV}
	svc := newTestService(store, transport, nil, messaging.NopPublisher{}, queue)
	queue.Register(retry.OpFeedSync, svc.RetryHandler())

	queue.Enqueue(retry.OpFeedSync, nil, errs.NewTransportError(errs.TransportConnectFailed, nil))
	queue.Drain(context.Background())

	assert.Zero(t, queue.Status().TotalOperations)
	assert.Len(t, store.products, 2)
}

func TestRetryHandlerKeepsEntryOnFailure(t *testing.T) {
	store := newFakeStore()
	queue := retry.NewQueue(zap.NewNop())
	transport := &fakeTransport{err: errs.NewTransportError(errs.TransportConnectFailed, nil)}
	svc := newTestService(store, transport, nil, messaging.NopPublisher{}, queue)
	queue.Register(retry.OpFeedSync, svc.RetryHandler())

	queue.Enqueue(retry.OpFeedSync, nil, errs.NewTransportError(errs.TransportConnectFailed, nil))
	queue.Drain(context.Background())

	assert.Equal(t, 1, queue.Status().TotalOperations)
	assert.Equal(t, 1, transport.calls)
}
