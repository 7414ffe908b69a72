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

const productColumns = `id, sku, name, description, category, cost_price, selling_price,
	delivery_cost, stock_quantity, in_stock, image_url, supplier, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.CostPrice,
		&p.SellingPrice, &p.DeliveryCost, &p.StockQuantity, &p.InStock, &p.ImageURL,
		&p.Supplier, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct fetches a product by numeric id. Returns nil when absent.
func (s *Storage) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(s.getExecutor(ctx).QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceErr(fmt.Errorf("failed to get product: %w", err))
	}
	return p, nil
}

// GetProductBySKU fetches a product by its unique SKU. Returns nil
// when absent.
func (s *Storage) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	p, err := scanProduct(s.getExecutor(ctx).QueryRow(ctx, query, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceErr(fmt.Errorf("failed to get product by sku: %w", err))
	}
	return p, nil
}

// CreateProduct inserts a product and fills its identity and
// timestamps.
func (s *Storage) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (sku, name, description, category, cost_price, selling_price,
			delivery_cost, stock_quantity, in_stock, image_url, supplier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	err := s.getExecutor(ctx).QueryRow(ctx, query,
		product.SKU, product.Name, product.Description, product.Category,
		product.CostPrice, product.SellingPrice, product.DeliveryCost,
		product.StockQuantity, product.InStock, product.ImageURL, product.Supplier,
		product.CreatedAt, product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		return persistenceErr(fmt.Errorf("failed to create product: %w", err))
	}
	return nil
}

// UpdateProduct overwrites every mutable field of an existing product
// and bumps its updated timestamp. Identity, SKU and created_at are
// never touched.
func (s *Storage) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, cost_price = $5,
			selling_price = $6, delivery_cost = $7, stock_quantity = $8,
			in_stock = $9, image_url = $10, supplier = $11, updated_at = $12
		WHERE id = $1
	`

	product.UpdatedAt = time.Now().UTC()

	tag, err := s.getExecutor(ctx).Exec(ctx, query,
		product.ID, product.Name, product.Description, product.Category,
		product.CostPrice, product.SellingPrice, product.DeliveryCost,
		product.StockQuantity, product.InStock, product.ImageURL, product.Supplier,
		product.UpdatedAt,
	)
	if err != nil {
		return persistenceErr(fmt.Errorf("failed to update product: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product by id. Only the admin API deletes
// products; the sync pipeline never does.
func (s *Storage) DeleteProduct(ctx context.Context, productID int64) error {
	tag, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return persistenceErr(fmt.Errorf("failed to delete product: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrProductNotFound
	}
	return nil
}

// ListProducts returns a page of products with optional free-text
// search and category filter, plus the total match count.
func (s *Storage) ListProducts(ctx context.Context, search, category string, page, pageSize int) ([]*models.Product, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d OR category ILIKE $%d OR sku ILIKE $%d)",
			argPos, argPos, argPos, argPos)
		args = append(args, "%"+search+"%")
		argPos++
	}
	if category != "" {
		where += fmt.Sprintf(" AND category ILIKE $%d", argPos)
		args = append(args, "%"+category+"%")
		argPos++
	}

	exec := s.getExecutor(ctx)

	var total int
	if err := exec.QueryRow(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, persistenceErr(fmt.Errorf("failed to count products: %w", err))
	}
	if total == 0 {
		return []*models.Product{}, 0, nil
	}

	query := fmt.Sprintf("SELECT "+productColumns+" FROM products"+where+
		" ORDER BY name LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, persistenceErr(fmt.Errorf("failed to list products: %w", err))
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, persistenceErr(fmt.Errorf("failed to scan product row: %w", err))
		}
		products = append(products, p)
	}
	if rows.Err() != nil {
		return nil, 0, persistenceErr(fmt.Errorf("error while iterating product rows: %w", rows.Err()))
	}

	return products, total, nil
}

// ListCategories returns the distinct non-empty categories in the
// catalog, sorted.
func (s *Storage) ListCategories(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`

	rows, err := s.getExecutor(ctx).Query(ctx, query)
	if err != nil {
		return nil, persistenceErr(fmt.Errorf("failed to list categories: %w", err))
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, persistenceErr(fmt.Errorf("failed to scan category row: %w", err))
		}
		categories = append(categories, c)
	}
	if rows.Err() != nil {
		return nil, persistenceErr(fmt.Errorf("error while iterating category rows: %w", rows.Err()))
	}
	return categories, nil
}
