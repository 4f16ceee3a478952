package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PriceSync/app/controllers"
	"github.com/ManuelReschke/PriceSync/internal/pkg/cache"
	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
)

type ApiRouter struct {
	pricing *controllers.PricingController
	orders  *controllers.OrderController
	limiter limiter.Config
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(h.limiter))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Post("/orders", h.orders.HandleCreateOrder)
	v1.Get("/orders/:id", h.orders.HandleGetOrder)
	v1.Post("/orders/:id/capture", h.orders.HandleCaptureOrder)

	v1.Get("/pricing/resolve", h.pricing.HandleResolve)
	v1.Get("/pricing/meta", h.pricing.HandleMeta)

	admin := v1.Group("/admin")
	admin.Post("/pricing/sync", h.pricing.HandleSync)
}

func NewApiRouter(pricing *controllers.PricingController, orders *controllers.OrderController) *ApiRouter {
	return &ApiRouter{
		pricing: pricing,
		orders:  orders,
		limiter: LimiterConfig(),
	}
}

// LimiterConfig reads API_RATE_LIMIT (requests per minute). With
// LIMITER_REDIS_ENABLED the counters live in Redis so replicas share them.
func LimiterConfig() limiter.Config {
	cfg := limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 60),
		Expiration: time.Minute,
	}
	if !env.GetEnvBool("LIMITER_REDIS_ENABLED", false) {
		return cfg
	}

	cacheCfg := cache.LoadConfig()
	if !cacheCfg.Configured() {
		log.Warnf("[Router] LIMITER_REDIS_ENABLED is set but CACHE_HOST is empty, using in-memory limiter")
		return cfg
	}
	cfg.Storage = redis.New(redis.Config{
		Host:     cacheCfg.Host,
		Port:     cacheCfg.Port,
		Password: cacheCfg.Password,
		Database: env.GetEnvInt("LIMITER_REDIS_DB", 1), // Separate database for limiter counters
		Reset:    false,
	})
	log.Infof("[Router] Rate limiter counters stored in redis %s db %d", cacheCfg.Addr(), env.GetEnvInt("LIMITER_REDIS_DB", 1))
	return cfg
}
