// Package sync runs the supplier feed synchronization pipeline:
// fetch, parse, reconcile, with retry and failure-queue handoff.
package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
)

// ProductStore is the persistence surface reconciliation needs. The
// transaction methods follow the tx-in-context pattern: BeginTx
// returns a context every subsequent call must use.
type ProductStore interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
}

// Reconciler upserts parsed feed records into the product store.
type Reconciler struct {
	store ProductStore
	log   *zap.Logger
}

// NewReconciler returns a reconciler over the given store.
func NewReconciler(store ProductStore, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Reconcile upserts every record by SKU inside one transaction. An
// existing product has all mutable fields overwritten (identity, SKU
// and created timestamp preserved); an absent SKU becomes a new
// product. Any mid-batch failure rolls the whole batch back.
func (r *Reconciler) Reconcile(ctx context.Context, records []models.ProductRecord) (models.SyncResult, error) {
	result := models.SyncResult{Total: len(records)}

	txCtx, err := r.store.BeginTx(ctx)
	if err != nil {
		return models.SyncResult{}, err
	}

	for _, record := range records {
		existing, err := r.store.GetProductBySKU(txCtx, record.SKU)
		if err != nil {
			r.store.RollbackTx(txCtx)
			return models.SyncResult{}, err
		}

		if existing == nil {
			product := productFromRecord(record)
			if err := r.store.CreateProduct(txCtx, product); err != nil {
				r.store.RollbackTx(txCtx)
				return models.SyncResult{}, err
			}
			result.Created++
			continue
		}

		applyRecord(existing, record)
		if err := r.store.UpdateProduct(txCtx, existing); err != nil {
			r.store.RollbackTx(txCtx)
			return models.SyncResult{}, err
		}
		result.Updated++
	}

	if err := r.store.CommitTx(txCtx); err != nil {
		r.store.RollbackTx(txCtx)
		return models.SyncResult{}, err
	}

	r.log.Info("reconciliation complete",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("total", result.Total))
	return result, nil
}

func productFromRecord(record models.ProductRecord) *models.Product {
	return &models.Product{
		SKU:           record.SKU,
		Name:          record.Name,
		Description:   record.Description,
		Category:      record.Category,
		CostPrice:     record.CostPrice,
		SellingPrice:  record.SellingPrice,
		DeliveryCost:  record.DeliveryCost,
		StockQuantity: record.StockQuantity,
		InStock:       record.InStock,
		ImageURL:      record.ImageURL,
		Supplier:      record.Supplier,
	}
}

func applyRecord(product *models.Product, record models.ProductRecord) {
	product.Name = record.Name
	product.Description = record.Description
	product.Category = record.Category
	product.CostPrice = record.CostPrice
	product.SellingPrice = record.SellingPrice
	product.DeliveryCost = record.DeliveryCost
	product.StockQuantity = record.StockQuantity
	product.InStock = record.InStock
	product.ImageURL = record.ImageURL
	product.Supplier = record.Supplier
}
