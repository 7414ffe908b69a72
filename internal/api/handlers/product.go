package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/pricing"
)

const productCacheTTL = 5 * time.Minute

// ProductStore is the catalog surface the product handler needs.
type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, search, category string, page, pageSize int) ([]*models.Product, int, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Cache is the cache-aside surface. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ProductHandler serves the catalog endpoints.
type ProductHandler struct {
	store   ProductStore
	cache   Cache
	pricing pricing.Rule
	log     *zap.Logger
}

// NewProductHandler wires the catalog endpoints.
func NewProductHandler(store ProductStore, cache Cache, rule pricing.Rule, log *zap.Logger) *ProductHandler {
	return &ProductHandler{store: store, cache: cache, pricing: rule, log: log}
}

// ListProducts returns a page of products with optional search and
// category filters. Pages are cached per query.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	search := r.URL.Query().Get("search")
	if search == "" {
		search = r.URL.Query().Get("q")
	}
	category := r.URL.Query().Get("category")

	cacheKey := fmt.Sprintf("products:list:%s:%s:%d:%d", search, category, page, pageSize)
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	products, total, err := h.store.ListProducts(r.Context(), search, category, page, pageSize)
	if err != nil {
		h.log.Error("failed to list products", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}

	if h.cache != nil {
		payload := response{
			Success: true,
			Data:    products,
			Meta: map[string]interface{}{
				"pagination": map[string]interface{}{
					"page":      page,
					"page_size": pageSize,
					"total":     total,
					"has_next":  page*pageSize < total,
					"has_prev":  page > 1,
				},
			},
		}
		if raw, err := json.Marshal(payload); err == nil {
			if err := h.cache.Set(r.Context(), cacheKey, raw, productCacheTTL); err != nil {
				h.log.Warn("failed to cache product list", zap.Error(err))
			}
		}
	}

	respondPage(w, r, products, page, pageSize, total)
}

// GetProduct returns a single product by id.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid product id")
		return
	}

	cacheKey := fmt.Sprintf("products:id:%d", id)
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		h.log.Error("failed to get product", zap.Int64("id", id), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to get product")
		return
	}
	if product == nil {
		respondError(w, r, http.StatusNotFound, "not_found", "product not found")
		return
	}

	if h.cache != nil {
		if raw, err := json.Marshal(response{Success: true, Data: product}); err == nil {
			if err := h.cache.Set(r.Context(), cacheKey, raw, productCacheTTL); err != nil {
				h.log.Warn("failed to cache product", zap.Error(err))
			}
		}
	}

	respondData(w, r, http.StatusOK, product)
}

// ListCategories returns the distinct categories in the catalog.
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.log.Error("failed to list categories", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to list categories")
		return
	}
	respondData(w, r, http.StatusOK, categories)
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "malformed request body")
		return nil, false
	}
	if product.SKU == "" {
		respondError(w, r, http.StatusBadRequest, "validation_error", "sku is required")
		return nil, false
	}
	if product.Name == "" {
		respondError(w, r, http.StatusBadRequest, "validation_error", "name is required")
		return nil, false
	}

	if product.CostPrice <= 0 {
		respondError(w, r, http.StatusBadRequest, "validation_error", "cost price must be positive")
		return nil, false
	}

	// The selling price is never taken from the client. It is always
	// derived from cost and delivery, and an absent delivery cost gets
	// the configured default.
	if product.DeliveryCost <= 0 {
		product.DeliveryCost = h.pricing.DeliveryCost
	}
	product.SellingPrice = h.pricing.SellingPrice(product.CostPrice, product.DeliveryCost)

	product.InStock = product.StockQuantity > 0
	return &product, true
}

// CreateProduct adds a product to the catalog.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		h.log.Error("failed to create product", zap.String("sku", product.SKU), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to create product")
		return
	}

	h.invalidateCache(r.Context())
	respondData(w, r, http.StatusCreated, product)
}

// UpdateProduct replaces a product's mutable fields.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid product id")
		return
	}

	product, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	product.ID = id

	if err := h.store.UpdateProduct(r.Context(), product); err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", "product not found")
			return
		}
		h.log.Error("failed to update product", zap.Int64("id", id), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to update product")
		return
	}

	h.invalidateCache(r.Context())
	respondData(w, r, http.StatusOK, product)
}

// DeleteProduct removes a product from the catalog.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_request", "invalid product id")
		return
	}

	if err := h.store.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", "product not found")
			return
		}
		h.log.Error("failed to delete product", zap.Int64("id", id), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "failed to delete product")
		return
	}

	h.invalidateCache(r.Context())
	respondData(w, r, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

func (h *ProductHandler) invalidateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DeleteByPattern(ctx, "products:*"); err != nil {
		h.log.Warn("failed to invalidate product cache", zap.Error(err))
	}
}
