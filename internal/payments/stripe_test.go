package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/messaging"
	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
)

type fakeOrderStore struct {
	products map[int64]*models.Product
	orders   []*models.Order
	items    []*models.OrderItem

	commits   int
	rollbacks int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{products: make(map[int64]*models.Product)}
}

func (f *fakeOrderStore) BeginTx(ctx context.Context) (context.Context, error) { return ctx, nil }
func (f *fakeOrderStore) CommitTx(context.Context) error                       { f.commits++; return nil }
func (f *fakeOrderStore) RollbackTx(context.Context) error                     { f.rollbacks++; return nil }

func (f *fakeOrderStore) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	return f.products[id], nil
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	order.ID = int64(len(f.orders) + 1)
	order.CreatedAt = time.Now().UTC()
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrderStore) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	item.ID = int64(len(f.items) + 1)
	f.items = append(f.items, item)
	return nil
}

type fakeSessions struct {
	params  *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	return f.session, f.err
}

type fakeNotifier struct {
	supplierOrders []models.Order
	confirmations  []models.Order
	err            error
}

func (f *fakeNotifier) SendSupplierOrder(_ context.Context, order models.Order) error {
	f.supplierOrders = append(f.supplierOrders, order)
	return f.err
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, order models.Order) error {
	f.confirmations = append(f.confirmations, order)
	return f.err
}

func newTestService(store *fakeOrderStore, sessions sessionCreator, notifier *fakeNotifier) *Service {
	return &Service{
		cfg: Config{
			PublishableKey: "pk_test_123",
			SuccessURL:     "https://shop.example/success",
			CancelURL:      "https://shop.example/cancel",
		},
		sessions:  sessions,
		store:     store,
		notifier:  notifier,
		publisher: messaging.NopPublisher{},
		log:       zap.NewNop(),
	}
}

func TestEncodeDecodeItems(t *testing.T) {
	items := []models.CheckoutItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 7, Quantity: 1},
	}

	raw, err := EncodeItems(items)
	require.NoError(t, err)

	decoded, err := DecodeItems(raw)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)
}

func TestDecodeItemsErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed json", "{not json"},
		{"wrong shape", `{"product_id": 1}`},
		{"invalid quantity", `[{"product_id": 1, "quantity": 0}]`},
		{"invalid product id", `[{"product_id": -3, "quantity": 1}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeItems(tc.raw)
			require.Error(t, err)
			assert.True(t, errs.IsParse(err))
		})
	}
}

func TestDecodeItemsEmpty(t *testing.T) {
	items, err := DecodeItems("")
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestCreateCheckoutSession(t *testing.T) {
	store := newFakeOrderStore()
	store.products[1] = &models.Product{ID: 1, SKU: "BRK001", Name: "Brake Pads Front", SellingPrice: 51.99}
	sessions := &fakeSessions{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}}
	svc := newTestService(store, sessions, &fakeNotifier{})

	result, err := svc.CreateCheckoutSession(context.Background(),
		[]models.CheckoutItem{{ProductID: 1, Quantity: 2}},
		CustomerInfo{Name: "Jane Rider", Email: "jane@example.com", Phone: "07000000000"})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", result.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", result.CheckoutURL)

	params := sessions.params
	require.NotNil(t, params)
	require.Len(t, params.LineItems, 1)
	line := params.LineItems[0]
	assert.Equal(t, int64(5199), *line.PriceData.UnitAmount)
	assert.Equal(t, "gbp", *line.PriceData.Currency)
	assert.Equal(t, "Brake Pads Front", *line.PriceData.ProductData.Name)
	assert.Equal(t, "SKU: BRK001", *line.PriceData.ProductData.Description)
	assert.Equal(t, int64(2), *line.Quantity)

	assert.Equal(t, "jane@example.com", *params.CustomerEmail)
	assert.Equal(t, "Jane Rider", params.Metadata["customer_name"])

	decoded, err := DecodeItems(params.Metadata["items"])
	require.NoError(t, err)
	assert.Equal(t, []models.CheckoutItem{{ProductID: 1, Quantity: 2}}, decoded)
}

func TestCreateCheckoutSessionUnknownProduct(t *testing.T) {
	svc := newTestService(newFakeOrderStore(), &fakeSessions{}, &fakeNotifier{})

	_, err := svc.CreateCheckoutSession(context.Background(),
		[]models.CheckoutItem{{ProductID: 42, Quantity: 1}}, CustomerInfo{})
	assert.ErrorIs(t, err, errs.ErrProductNotFound)
}

func TestCreateCheckoutSessionNoItems(t *testing.T) {
	svc := newTestService(newFakeOrderStore(), &fakeSessions{}, &fakeNotifier{})
	_, err := svc.CreateCheckoutSession(context.Background(), nil, CustomerInfo{})
	assert.Error(t, err)
}

func completedSessionEvent(t *testing.T, session map[string]interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleCheckoutCompleted(t *testing.T) {
	store := newFakeOrderStore()
	store.products[1] = &models.Product{ID: 1, SKU: "BRK001", Name: "Brake Pads Front", SellingPrice: 51.99}
	notifier := &fakeNotifier{}
	svc := newTestService(store, &fakeSessions{}, notifier)

	itemsMeta, err := EncodeItems([]models.CheckoutItem{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)

	event := completedSessionEvent(t, map[string]interface{}{
		"id":           "cs_test_9",
		"amount_total": 10398,
		"customer_details": map[string]interface{}{
			"name":  "Jane Rider",
			"email": "jane@example.com",
		},
		"shipping_details": map[string]interface{}{
			"address": map[string]interface{}{
				"line1":       "1 High Street",
				"city":        "Portsmouth",
				"postal_code": "PO1 1AA",
				"country":     "GB",
			},
		},
		"metadata": map[string]string{
			"customer_phone": "07000000000",
			"items":          itemsMeta,
		},
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, store.orders, 1)
	order := store.orders[0]
	assert.Len(t, order.OrderID, 8)
	assert.Equal(t, "cs_test_9", order.StripeSessionID)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "Jane Rider", order.CustomerName)
	assert.Equal(t, "07000000000", order.CustomerPhone)
	assert.Equal(t, "1 High Street", order.AddressLine1)
	assert.InDelta(t, 103.98, order.TotalAmount, 1e-9)

	require.Len(t, store.items, 1)
	item := store.items[0]
	assert.Equal(t, order.ID, item.OrderID)
	assert.Equal(t, 2, item.Quantity)
	assert.InDelta(t, 51.99, item.UnitPrice, 1e-9)
	assert.InDelta(t, 103.98, item.TotalPrice, 1e-9)
	assert.Equal(t, 1, store.commits)

	require.Len(t, notifier.supplierOrders, 1)
	require.Len(t, notifier.confirmations, 1)
	assert.Equal(t, order.OrderID, notifier.supplierOrders[0].OrderID)
	require.Len(t, notifier.supplierOrders[0].Items, 1)
	assert.Equal(t, "BRK001", notifier.supplierOrders[0].Items[0].ProductSKU)
}

func TestHandleCheckoutCompletedMalformedItems(t *testing.T) {
	store := newFakeOrderStore()
	notifier := &fakeNotifier{}
	svc := newTestService(store, &fakeSessions{}, notifier)

	event := completedSessionEvent(t, map[string]interface{}{
		"id":           "cs_test_10",
		"amount_total": 500,
		"metadata":     map[string]string{"items": "{definitely not json"},
	})

	// The payment already happened, so the order still persists with
	// no lines.
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.Len(t, store.orders, 1)
	assert.Empty(t, store.items)
	assert.Len(t, notifier.supplierOrders, 1)
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	store := newFakeOrderStore()
	svc := newTestService(store, &fakeSessions{}, &fakeNotifier{})

	event := stripe.Event{Type: "payment_intent.succeeded", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, store.orders)
}

func signedHeader(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc := newTestService(newFakeOrderStore(), &fakeSessions{}, &fakeNotifier{})
	svc.cfg.WebhookSecret = "whsec_test"

	payload := []byte(fmt.Sprintf(
		`{"id": "evt_1", "api_version": %q, "type": "checkout.session.completed", "data": {"object": {}}}`,
		stripe.APIVersion))

	event, err := svc.VerifyWebhook(payload, signedHeader("whsec_test", payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, stripe.EventType("checkout.session.completed"), event.Type)

	_, err = svc.VerifyWebhook(payload, signedHeader("whsec_wrong", payload, time.Now()))
	assert.Error(t, err)

	_, err = svc.VerifyWebhook(payload, "not-a-signature")
	assert.Error(t, err)
}

func TestVerifyWebhookWithoutSecret(t *testing.T) {
	svc := newTestService(newFakeOrderStore(), &fakeSessions{}, &fakeNotifier{})

	event, err := svc.VerifyWebhook([]byte(`{"type": "checkout.session.completed"}`), "")
	require.NoError(t, err)
	assert.Equal(t, stripe.EventType("checkout.session.completed"), event.Type)

	_, err = svc.VerifyWebhook([]byte("{broken"), "")
	require.Error(t, err)
	assert.True(t, errs.IsParse(err))
}
