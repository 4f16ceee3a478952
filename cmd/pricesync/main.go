package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	flog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PriceSync/app/controllers"
	"github.com/ManuelReschke/PriceSync/internal/pkg/catalog"
	"github.com/ManuelReschke/PriceSync/internal/pkg/checkout"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
	"github.com/ManuelReschke/PriceSync/internal/pkg/gateway"
	"github.com/ManuelReschke/PriceSync/internal/pkg/router"
	"github.com/ManuelReschke/PriceSync/internal/pkg/snapshot"
)

func main() {
	app := NewApplication(context.Background())
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication(ctx context.Context) *fiber.App {
	if err := env.SetupEnvFile(); err != nil {
		flog.Warnf("%v, using process environment", err)
	}

	// Backend paths are selected once; without any, sync and lookups answer 503.
	paths, err := docstore.Select(ctx, docstore.LoadConfig())
	if err != nil {
		if !errors.Is(err, docstore.ErrNotConfigured) {
			log.Fatal(err)
		}
		flog.Errorf("No catalog backend available: %v", err)
		paths = &docstore.Paths{}
	}

	var snapshots controllers.SnapshotStore
	s3Cfg, err := snapshot.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if s3Cfg.IsEnabled() {
		store, err := snapshot.NewStore(ctx, s3Cfg)
		if err != nil {
			log.Fatal(err)
		}
		snapshots = store
	}

	paypal := gateway.NewPayPalClientFromEnv()
	if !paypal.Configured() {
		flog.Warnf("PayPal credentials missing, order endpoints will answer 503")
	}

	pricing := controllers.NewPricingController(paths, snapshots)
	orders := controllers.NewOrderController(checkout.NewService(paypal, catalog.NewResolver(paths), ""))

	app := fiber.New(fiber.Config{
		BodyLimit: snapshot.MaxSize,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app, router.NewApiRouter(pricing, orders))

	return app
}
