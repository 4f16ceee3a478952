package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
)

// HttpRouter serves health, Prometheus metrics and the Fiber monitor.
type HttpRouter struct {
	metricsUser     string
	metricsPassword string
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	metrics := adaptor.HTTPHandler(promhttp.Handler())
	if h.metricsUser == "" {
		app.Get("/metrics", metrics)
		return
	}

	auth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.metricsUser: h.metricsPassword,
		},
	})
	app.Get("/metrics", auth, metrics)
	app.Get("/monitor", auth, monitor.New())
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{
		metricsUser:     env.GetEnv("METRICS_USER", ""),
		metricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
	}
}
