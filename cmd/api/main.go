package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vastralabs/vastra-backend/api/routes"
	"github.com/vastralabs/vastra-backend/internal/address"
	authsvc "github.com/vastralabs/vastra-backend/internal/auth"
	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/internal/catalog"
	checkoutsvc "github.com/vastralabs/vastra-backend/internal/checkout"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/internal/payments"
	"github.com/vastralabs/vastra-backend/internal/tryon"
	"github.com/vastralabs/vastra-backend/internal/users"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/logger"
	"github.com/vastralabs/vastra-backend/pkg/metrics"
	"github.com/vastralabs/vastra-backend/pkg/migrate"
	"github.com/vastralabs/vastra-backend/pkg/razorpay"
	"github.com/vastralabs/vastra-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)

	inv, err := inventory.NewService(inventory.NewRepository(conn))
	fatalOn(logg, "inventory service", err)

	catalogRepo := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(dbClient, catalogRepo, inv)
	fatalOn(logg, "catalog service", err)

	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, catalogRepo, inv)
	fatalOn(logg, "cart service", err)

	addrSvc, err := address.NewService(dbClient, address.NewRepository(conn))
	fatalOn(logg, "address service", err)

	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(dbClient, ordersRepo, inv)
	fatalOn(logg, "orders service", err)

	gateway, err := razorpay.NewClient(cfg.Razorpay, logg)
	fatalOn(logg, "razorpay client", err)

	checkoutSvc, err := checkoutsvc.NewService(
		dbClient, cfg.Checkout, cartRepo, cart.NewResolver(catalogRepo, inv),
		ordersRepo, inv, addrSvc, gateway, logg, checkoutMetrics,
	)
	fatalOn(logg, "checkout service", err)

	paymentsSvc, err := payments.NewService(
		dbClient, ordersRepo, cartRepo, inv, gateway, redisClient, logg, checkoutMetrics,
	)
	fatalOn(logg, "payments service", err)

	authService, err := authsvc.NewService(users.NewRepository(conn), cfg.JWT, cfg.Password)
	fatalOn(logg, "auth service", err)

	tryonSvc, err := tryon.NewService(tryon.NewRepository(conn), catalogRepo, tryonGenerator(cfg, logg), logg)
	fatalOn(logg, "tryon service", err)

	router := routes.NewRouter(routes.Deps{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		AuthService:     authService,
		CatalogService:  catalogSvc,
		CartService:     cartSvc,
		CheckoutService: checkoutSvc,
		PaymentsService: paymentsSvc,
		OrdersService:   ordersSvc,
		AddressService:  addrSvc,
		TryOnService:    tryonSvc,
		Inventory:       inv,
		WebhookVerifier: gateway,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		graceCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down")
}

func tryonGenerator(cfg *config.Config, logg *logger.Logger) tryon.Generator {
	if cfg.TryOn.ServiceURL == "" {
		logg.Warn(context.Background(), "try-on service URL not set; jobs will fail until configured")
		return tryon.NullGenerator{}
	}
	gen, err := tryon.NewHTTPGenerator(cfg.TryOn)
	if err != nil {
		logg.Warn(context.Background(), "try-on generator misconfigured; falling back to null generator")
		return tryon.NullGenerator{}
	}
	return gen
}

func fatalOn(logg *logger.Logger, what string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+what, err)
		os.Exit(1)
	}
}
