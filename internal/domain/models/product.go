package models

import "time"

// SupplierBikeIt is the supplier attributed to every feed-synced product.
const SupplierBikeIt = "Bike It"

// Product is the persisted catalog entity. Keyed by numeric id with sku
// as a secondary unique key. Created on first sync or by the admin API,
// overwritten (except id, sku and created_at) on subsequent syncs.
type Product struct {
	ID            int64     `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	CostPrice     float64   `json:"cost_price"`
	SellingPrice  float64   `json:"selling_price"`
	DeliveryCost  float64   `json:"delivery_cost"`
	StockQuantity int       `json:"stock_quantity"`
	InStock       bool      `json:"in_stock"`
	ImageURL      string    `json:"image_url"`
	Supplier      string    `json:"supplier"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductRecord is the ephemeral parser output for a single feed row.
// Records missing SKU or Name are dropped before reconciliation.
type ProductRecord struct {
	SKU           string  `json:"sku"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	CostPrice     float64 `json:"cost_price"`
	SellingPrice  float64 `json:"selling_price"`
	DeliveryCost  float64 `json:"delivery_cost"`
	StockQuantity int     `json:"stock_quantity"`
	InStock       bool    `json:"in_stock"`
	ImageURL      string  `json:"image_url"`
	Supplier      string  `json:"supplier"`
}
