package models

import (
	"fmt"
	"time"
)

// Order statuses accepted by the status-update endpoint.
const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// ValidOrderStatus reports whether s is an accepted order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is the typed order summary shared by the webhook path, the
// drop-ship emails and the failed-operation queue's reconstruction
// path.
type Order struct {
	ID              int64       `json:"id"`
	OrderID         string      `json:"order_id"`
	StripeSessionID string      `json:"stripe_session_id"`
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerPhone   string      `json:"customer_phone"`
	AddressLine1    string      `json:"address_line_1"`
	AddressLine2    string      `json:"address_line_2"`
	City            string      `json:"city"`
	Postcode        string      `json:"postcode"`
	Country         string      `json:"country"`
	TotalAmount     float64     `json:"total_amount"`
	Status          string      `json:"order_status"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is one purchased line of an order.
type OrderItem struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductSKU  string  `json:"product_sku"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// CheckoutItem is a requested line in a checkout session, before the
// order exists. It is what gets encoded into the session metadata.
type CheckoutItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Validate rejects checkout items that cannot form an order line.
func (c CheckoutItem) Validate() error {
	if c.ProductID <= 0 {
		return fmt.Errorf("invalid product id %d", c.ProductID)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", c.Quantity)
	}
	return nil
}
