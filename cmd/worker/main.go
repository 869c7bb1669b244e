package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/vastralabs/vastra-backend/internal/catalog"
	"github.com/vastralabs/vastra-backend/internal/tryon"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/logger"
	"github.com/vastralabs/vastra-backend/pkg/migrate"
)

const pollInterval = 3 * time.Second

// The try-on worker drains queued render jobs. Multiple instances are safe:
// the queue claim is a conditional status update.
func main() {
	logg := logger.New(logger.Options{ServiceName: "tryon-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "tryon-worker",
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

	var generator tryon.Generator = tryon.NullGenerator{}
	if cfg.TryOn.ServiceURL != "" {
		gen, err := tryon.NewHTTPGenerator(cfg.TryOn)
		if err != nil {
			logg.Error(context.Background(), "failed to create try-on generator", err)
			os.Exit(1)
		}
		generator = gen
	} else {
		logg.Warn(context.Background(), "try-on service URL not set; queued jobs will fail")
	}

	svc, err := tryon.NewService(
		tryon.NewRepository(dbClient.DB()),
		catalog.NewRepository(dbClient.DB()),
		generator,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create try-on service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting try-on worker")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logg.Info(ctx, "try-on worker shutting down gracefully")
			return
		case <-ticker.C:
			// Drain the queue before sleeping again.
			for {
				processed, err := svc.ProcessNext(ctx)
				if err != nil {
					logg.Error(ctx, "try-on job processing failed", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}
