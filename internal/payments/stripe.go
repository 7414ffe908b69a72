// Package payments drives Stripe hosted checkout and turns completed
// sessions into persisted orders.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/messaging"
	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
)

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stripe_webhook_events_total",
	Help: "Stripe webhook events by type and outcome.",
}, []string{"type", "outcome"})

// Countries we ship to via the supplier's courier network.
var shippingCountries = []string{"GB", "US", "CA", "AU", "DE", "FR", "IT", "ES", "NL", "BE"}

// Config holds the Stripe keys and the redirect URLs for hosted
// checkout. An empty WebhookSecret disables signature verification,
// which is only acceptable in local development.
type Config struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	SuccessURL     string
	CancelURL      string
}

// OrderStore is the persistence surface the webhook path needs. The
// transaction methods follow the tx-in-context pattern.
type OrderStore interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
}

// Notifier triggers the order emails once an order is persisted.
type Notifier interface {
	SendSupplierOrder(ctx context.Context, order models.Order) error
	SendOrderConfirmation(ctx context.Context, order models.Order) error
}

// sessionCreator matches the Stripe checkout session client.
type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CustomerInfo is what the storefront knows about the buyer before
// Stripe collects the rest.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CheckoutSession is the handler-facing result of session creation.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// Service owns the checkout and webhook flows.
type Service struct {
	cfg       Config
	sessions  sessionCreator
	store     OrderStore
	notifier  Notifier
	publisher messaging.Publisher
	log       *zap.Logger
}

// NewService builds the Stripe client and wires the payment flows.
func NewService(cfg Config, store OrderStore, notifier Notifier, publisher messaging.Publisher, log *zap.Logger) *Service {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Service{
		cfg:       cfg,
		sessions:  api.CheckoutSessions,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// PublishableKey exposes the frontend key for the stripe-config
// endpoint.
func (s *Service) PublishableKey() string {
	return s.cfg.PublishableKey
}

// CreateCheckoutSession prices the requested items from the catalog
// and opens a Stripe hosted checkout session. The items are encoded
// into the session metadata for the webhook to rebuild later.
func (s *Service) CreateCheckoutSession(ctx context.Context, items []models.CheckoutItem, customer CustomerInfo) (*CheckoutSession, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items provided")
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}

		product, err := s.store.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, errs.ErrProductNotFound)
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyGBP)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(product.Name),
					Description: stripe.String("SKU: " + product.SKU),
				},
				UnitAmount: stripe.Int64(int64(product.SellingPrice * 100)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	encodedItems, err := EncodeItems(items)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:                lineItems,
		SuccessURL:               stripe.String(s.cfg.SuccessURL),
		CancelURL:                stripe.String(s.cfg.CancelURL),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(shippingCountries),
		},
	}
	if customer.Email != "" {
		params.CustomerEmail = stripe.String(customer.Email)
	}
	params.AddMetadata("customer_name", customer.Name)
	params.AddMetadata("customer_phone", customer.Phone)
	params.AddMetadata("items", encodedItems)

	session, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.log.Info("checkout session created", zap.String("session_id", session.ID))
	return &CheckoutSession{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// VerifyWebhook checks the Stripe signature and parses the event. With
// no webhook secret configured the payload is trusted as-is.
func (s *Service) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	if s.cfg.WebhookSecret != "" {
		return webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, errs.NewParseError("malformed webhook payload", err)
	}
	return event, nil
}

// HandleEvent dispatches a verified webhook event. Unhandled event
// types are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		err := s.handleCheckoutCompleted(ctx, event)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		webhookEvents.WithLabelValues(string(event.Type), outcome).Inc()
		return err
	default:
		s.log.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		webhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return errs.NewParseError("malformed checkout session payload", err)
	}

	items, err := DecodeItems(session.Metadata["items"])
	if err != nil {
		// The payment already happened; persist the order anyway and
		// leave the lines for manual reconciliation.
		s.log.Warn("failed to decode items metadata, order will have no lines",
			zap.String("session_id", session.ID),
			zap.Error(err))
		items = nil
	}

	order := orderFromSession(&session)

	policy := retry.WebhookPolicy(errs.IsTransientPersistence)
	persisted, err := retry.Do(ctx, policy, s.log, "persist-order", func(ctx context.Context) (models.Order, error) {
		return s.persistOrder(ctx, order, items)
	})
	if err != nil {
		return err
	}

	s.log.Info("order created from checkout session",
		zap.String("order_id", persisted.OrderID),
		zap.String("session_id", persisted.StripeSessionID),
		zap.Float64("total", persisted.TotalAmount))

	if err := s.publisher.Publish(ctx, messaging.TopicOrderCreated, persisted); err != nil {
		s.log.Warn("failed to publish order created event", zap.Error(err))
	}

	// Email failures never fail the webhook: the drop-ship service
	// retries and queues on its own.
	if err := s.notifier.SendSupplierOrder(ctx, persisted); err != nil {
		s.log.Error("supplier notification failed", zap.String("order_id", persisted.OrderID), zap.Error(err))
	}
	if err := s.notifier.SendOrderConfirmation(ctx, persisted); err != nil {
		s.log.Error("order confirmation failed", zap.String("order_id", persisted.OrderID), zap.Error(err))
	}
	return nil
}

// persistOrder writes the order and its lines in one transaction and
// returns the order with items attached.
func (s *Service) persistOrder(ctx context.Context, order models.Order, items []models.CheckoutItem) (models.Order, error) {
	txCtx, err := s.store.BeginTx(ctx)
	if err != nil {
		return models.Order{}, err
	}

	if err := s.store.CreateOrder(txCtx, &order); err != nil {
		s.store.RollbackTx(txCtx)
		return models.Order{}, err
	}

	for _, item := range items {
		product, err := s.store.GetProduct(txCtx, item.ProductID)
		if err != nil {
			s.store.RollbackTx(txCtx)
			return models.Order{}, err
		}
		if product == nil {
			s.log.Warn("checkout item references unknown product",
				zap.Int64("product_id", item.ProductID),
				zap.String("order_id", order.OrderID))
			continue
		}

		line := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.SellingPrice,
			TotalPrice:  product.SellingPrice * float64(item.Quantity),
		}
		if err := s.store.CreateOrderItem(txCtx, &line); err != nil {
			s.store.RollbackTx(txCtx)
			return models.Order{}, err
		}
		order.Items = append(order.Items, line)
	}

	if err := s.store.CommitTx(txCtx); err != nil {
		s.store.RollbackTx(txCtx)
		return models.Order{}, err
	}
	return order, nil
}

// orderFromSession maps a completed checkout session onto an order.
// The public order id is eight hex characters, readable enough for
// customer support exchanges.
func orderFromSession(session *stripe.CheckoutSession) models.Order {
	order := models.Order{
		OrderID:         strings.ToUpper(uuid.NewString()[:8]),
		StripeSessionID: session.ID,
		CustomerPhone:   session.Metadata["customer_phone"],
		TotalAmount:     float64(session.AmountTotal) / 100,
		Status:          models.OrderStatusPaid,
	}

	if session.CustomerDetails != nil {
		order.CustomerName = session.CustomerDetails.Name
		order.CustomerEmail = session.CustomerDetails.Email
	}
	if order.CustomerName == "" {
		order.CustomerName = session.Metadata["customer_name"]
	}

	if session.ShippingDetails != nil && session.ShippingDetails.Address != nil {
		addr := session.ShippingDetails.Address
		order.AddressLine1 = addr.Line1
		order.AddressLine2 = addr.Line2
		order.City = addr.City
		order.Postcode = addr.PostalCode
		order.Country = addr.Country
	}
	return order
}
