package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/payments"
)

// Stripe caps webhook payloads well below this.
const maxWebhookBody = 1 << 20

// OrderStore is the order surface the handler needs.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, status string, page, pageSize int) ([]*models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, error)
}

// PaymentService is the checkout and webhook surface.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, items []models.CheckoutItem, customer payments.CustomerInfo) (*payments.CheckoutSession, error)
	VerifyWebhook(payload []byte, signature string) (stripe.Event, error)
	HandleEvent(ctx context.Context, event stripe.Event) error
	PublishableKey() string
}

// OrderHandler serves order management, checkout and the Stripe
// webhook.
type OrderHandler struct {
	store    OrderStore
	payments PaymentService
	log      *zap.Logger
}

// NewOrderHandler wires the order endpoints.
func NewOrderHandler(store OrderStore, payments PaymentService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{store: store, payments: payments, log: log}
}

// ListOrders returns a page of orders, optionally filtered by status.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidOrderStatus(status) {
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid status filter")
		return
	}

	orders, total, err := h.store.ListOrders(r.Context(), status, page, pageSize)
	if err != nil {
		h.log.Error("failed to list orders", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	respondPage(w, r, orders, page, pageSize, total)
}

// GetOrder returns a single order with its lines.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid order id")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		h.log.Error("failed to get order", zap.Int64("id", id), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to get order")
		return
	}
	if order == nil {
		respondError(w, r, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondData(w, r, http.StatusOK, order)
}

// UpdateOrderStatus moves an order through its lifecycle.
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid order id")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if !models.ValidOrderStatus(body.Status) {
		respondError(w, r, http.StatusBadRequest, "validation_error", "invalid status")
		return
	}

	order, err := h.store.UpdateOrderStatus(r.Context(), id, body.Status)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", "order not found")
			return
		}
		h.log.Error("failed to update order status", zap.Int64("id", id), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to update order status")
		return
	}

	respondData(w, r, http.StatusOK, order)
}

// CreateCheckoutSession opens a Stripe hosted checkout for the
// requested cart.
func (h *OrderHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items    []models.CheckoutItem `json:"items"`
		Customer payments.CustomerInfo `json:"customer_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if len(body.Items) == 0 {
		respondError(w, r, http.StatusBadRequest, "validation_error", "no items provided")
		return
	}

	session, err := h.payments.CreateCheckoutSession(r.Context(), body.Items, body.Customer)
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", err.Error())
			return
		}
		h.log.Error("failed to create checkout session", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to create checkout session")
		return
	}

	respondData(w, r, http.StatusOK, session)
}

// StripeWebhook receives Stripe events. Signature failures get a 400
// so Stripe retries nothing; processing failures get a 500 so Stripe
// redelivers.
func (h *OrderHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "failed to read payload")
		return
	}

	event, err := h.payments.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn("rejected stripe webhook", zap.Error(err))
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid signature or payload")
		return
	}

	if err := h.payments.HandleEvent(r.Context(), event); err != nil {
		h.log.Error("failed to process stripe event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to process event")
		return
	}

	respondData(w, r, http.StatusOK, nil)
}

// StripeConfig exposes the publishable key to the storefront.
func (h *OrderHandler) StripeConfig(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{
		"publishable_key": h.payments.PublishableKey(),
	})
}
