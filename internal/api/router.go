// Package api assembles the HTTP router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/internal/api/handlers"
	"github.com/jonnyallum/blmotorcyclesltd/internal/api/middleware"
	"github.com/jonnyallum/blmotorcyclesltd/internal/security"
)

// RouterDeps carries everything the router wires together.
type RouterDeps struct {
	Products *handlers.ProductHandler
	Orders   *handlers.OrderHandler
	Sync     *handlers.SyncHandler

	CORSAllowedOrigins []string
	AdminJWTSecret     string
	RequestTimeout     time.Duration
	Logger             *zap.Logger
}

// SetupRouter builds the route tree with the full middleware chain.
func SetupRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.CORS(deps.CORSAllowedOrigins))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	var tokens *security.TokenManager
	if deps.AdminJWTSecret != "" {
		tokens = security.NewTokenManager(deps.AdminJWTSecret, 12*time.Hour)
	}
	adminOnly := middleware.AdminAuth(tokens, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		// Public storefront endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.With(middleware.Metrics("/api/products")).Get("/products", deps.Products.ListProducts)
			r.With(middleware.Metrics("/api/products/{id}")).Get("/products/{id}", deps.Products.GetProduct)
			r.With(middleware.Metrics("/api/categories")).Get("/categories", deps.Products.ListCategories)

			r.With(middleware.Metrics("/api/create-checkout-session")).
				Post("/create-checkout-session", deps.Orders.CreateCheckoutSession)
			r.With(middleware.Metrics("/api/stripe-config")).Get("/stripe-config", deps.Orders.StripeConfig)
			r.With(middleware.Metrics("/api/webhook/stripe")).Post("/webhook/stripe", deps.Orders.StripeWebhook)
		})

		// Management endpoints.
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Use(middleware.Timeout(timeout))

			r.With(middleware.Metrics("/api/products")).Post("/products", deps.Products.CreateProduct)
			r.With(middleware.Metrics("/api/products/{id}")).Put("/products/{id}", deps.Products.UpdateProduct)
			r.With(middleware.Metrics("/api/products/{id}")).Delete("/products/{id}", deps.Products.DeleteProduct)

			r.With(middleware.Metrics("/api/orders")).Get("/orders", deps.Orders.ListOrders)
			r.With(middleware.Metrics("/api/orders/{id}")).Get("/orders/{id}", deps.Orders.GetOrder)
			r.With(middleware.Metrics("/api/orders/{id}/status")).
				Put("/orders/{id}/status", deps.Orders.UpdateOrderStatus)

			r.With(middleware.Metrics("/api/sync-queue")).Get("/sync-queue", deps.Sync.QueueStatus)
		})

		// The sync trigger waits on SFTP plus retries, so it runs
		// without the standard request timeout.
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.With(middleware.Metrics("/api/sync-products")).Post("/sync-products", deps.Sync.TriggerSync)
		})
	})

	return r
}
