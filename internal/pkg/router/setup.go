package router

import (
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the operational routes first, then the API.
func InstallRouter(app *fiber.App, api *ApiRouter) {
	setup(app, NewHttpRouter(), api)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
