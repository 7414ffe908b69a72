package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
)

const orderColumns = `id, order_id, stripe_session_id, customer_name, customer_email,
	customer_phone, address_line_1, address_line_2, city, postcode, country,
	total_amount, order_status, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.OrderID, &o.StripeSessionID, &o.CustomerName, &o.CustomerEmail,
		&o.CustomerPhone, &o.AddressLine1, &o.AddressLine2, &o.City, &o.Postcode, &o.Country,
		&o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts an order and fills its identity and timestamps.
func (s *Storage) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_id, stripe_session_id, customer_name, customer_email,
			customer_phone, address_line_1, address_line_2, city, postcode, country,
			total_amount, order_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	err := s.getExecutor(ctx).QueryRow(ctx, query,
		order.OrderID, order.StripeSessionID, order.CustomerName, order.CustomerEmail,
		order.CustomerPhone, order.AddressLine1, order.AddressLine2, order.City,
		order.Postcode, order.Country, order.TotalAmount, order.Status,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return persistenceErr(fmt.Errorf("failed to create order: %w", err))
	}
	return nil
}

// CreateOrderItem inserts one purchased line.
func (s *Storage) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.getExecutor(ctx).QueryRow(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID)
	if err != nil {
		return persistenceErr(fmt.Errorf("failed to create order item: %w", err))
	}
	return nil
}

// GetOrder fetches an order with its items. Returns nil when absent.
func (s *Storage) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.getExecutor(ctx).QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceErr(fmt.Errorf("failed to get order: %w", err))
	}

	items, err := s.GetOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// GetOrderItems returns the purchased lines of an order, joined with
// the product's SKU and name for the drop-ship email.
func (s *Storage) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT i.id, i.order_id, i.product_id, COALESCE(p.sku, ''), COALESCE(p.name, ''),
			i.quantity, i.unit_price, i.total_price
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.id
	`

	rows, err := s.getExecutor(ctx).Query(ctx, query, orderID)
	if err != nil {
		return nil, persistenceErr(fmt.Errorf("failed to query order items: %w", err))
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductSKU, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice)
		if err != nil {
			return nil, persistenceErr(fmt.Errorf("failed to scan order item row: %w", err))
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, persistenceErr(fmt.Errorf("error while iterating order item rows: %w", rows.Err()))
	}
	return items, nil
}

// ListOrders returns a page of orders, newest first, with an optional
// status filter.
func (s *Storage) ListOrders(ctx context.Context, status string, page, pageSize int) ([]*models.Order, int, error) {
	where := ""
	args := []interface{}{}
	argPos := 1

	if status != "" {
		where = fmt.Sprintf(" WHERE order_status = $%d", argPos)
		args = append(args, status)
		argPos++
	}

	exec := s.getExecutor(ctx)

	var total int
	if err := exec.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, persistenceErr(fmt.Errorf("failed to count orders: %w", err))
	}
	if total == 0 {
		return []*models.Order{}, 0, nil
	}

	query := fmt.Sprintf("SELECT "+orderColumns+" FROM orders"+where+
		" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, persistenceErr(fmt.Errorf("failed to list orders: %w", err))
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, persistenceErr(fmt.Errorf("failed to scan order row: %w", err))
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, 0, persistenceErr(fmt.Errorf("error while iterating order rows: %w", rows.Err()))
	}
	return orders, total, nil
}

// UpdateOrderStatus sets a new status and returns the updated order.
func (s *Storage) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	query := `
		UPDATE orders
		SET order_status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + orderColumns

	o, err := scanOrder(s.getExecutor(ctx).QueryRow(ctx, query, orderID, status, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrOrderNotFound
		}
		return nil, persistenceErr(fmt.Errorf("failed to update order status: %w", err))
	}
	return o, nil
}
