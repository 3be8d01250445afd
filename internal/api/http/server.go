package http

import (
	"github.com/gofiber/fiber/v2"
)

// NewServer builds the fiber application with the global middleware chain and routes.
func NewServer(appName string, mw MiddlewareConfig, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, mw)
	RegisterRoutes(app, routes)
	return app
}
