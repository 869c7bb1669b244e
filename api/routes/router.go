package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vastralabs/vastra-backend/api/controllers"
	webhookcontrollers "github.com/vastralabs/vastra-backend/api/controllers/webhooks"
	"github.com/vastralabs/vastra-backend/api/middleware"
	"github.com/vastralabs/vastra-backend/internal/address"
	authsvc "github.com/vastralabs/vastra-backend/internal/auth"
	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/internal/catalog"
	checkoutsvc "github.com/vastralabs/vastra-backend/internal/checkout"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/internal/payments"
	"github.com/vastralabs/vastra-backend/internal/tryon"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/logger"
	pkgredis "github.com/vastralabs/vastra-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *pkgredis.Client
	AuthService     authsvc.Service
	CatalogService  catalog.Service
	CartService     cart.Service
	CheckoutService checkoutsvc.Service
	PaymentsService payments.Service
	OrdersService   orders.Service
	AddressService  address.Service
	TryOnService    tryon.Service
	Inventory       inventory.Service
	WebhookVerifier webhookcontrollers.WebhookVerifier
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var redisPinger pkgredis.Pinger
	var guardStore pkgredis.IdempotencyStore
	var rateLimitStore middleware.RateLimiterStore
	if deps.Redis != nil {
		redisPinger = deps.Redis
		guardStore = deps.Redis
		rateLimitStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(deps.PaymentsService, deps.WebhookVerifier, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, rateLimitStore, logg)).Post("/register", controllers.AuthRegister(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, rateLimitStore, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(deps.CatalogService, logg))
		r.Get("/{productId}", controllers.ProductDetail(deps.CatalogService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(guardStore, logg))

		r.Get("/me", controllers.AuthMe(deps.AuthService, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.CartService, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
			r.Put("/items/{itemId}", controllers.CartUpdateItem(deps.CartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.CartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))
		r.Post("/checkout/verify", controllers.VerifyPayment(deps.PaymentsService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.OrdersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.OrdersService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.OrdersService, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(deps.AddressService, logg))
			r.Post("/", controllers.AddressCreate(deps.AddressService, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(deps.AddressService, logg))
		})

		r.Route("/tryon", func(r chi.Router) {
			r.Post("/", controllers.TryOnSubmit(deps.TryOnService, logg))
			r.Get("/", controllers.TryOnList(deps.TryOnService, logg))
			r.Get("/{jobId}", controllers.TryOnDetail(deps.TryOnService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Post("/products", controllers.AdminProductCreate(deps.CatalogService, logg))
			r.Patch("/products/{productId}", controllers.AdminProductUpdate(deps.CatalogService, logg))
			r.Post("/orders/{orderId}/status", controllers.AdminOrderAdvanceStatus(deps.OrdersService, logg))
			r.Get("/inventory/low-stock", controllers.AdminLowStock(deps.Inventory, logg))
			r.Put("/inventory/{variantId}", controllers.AdminSetStock(deps.Inventory, logg))
		})
	})

	return r
}
