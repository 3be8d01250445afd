package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/api/http/handlers"
	"github.com/spec-kit/interaction-tracker/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Interactions   *handlers.InteractionsHandler
	Admin          *handlers.AdminHandler
	Clients        *handlers.ClientsHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         auth.Policy
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	optional := []fiber.Handler{cfg.AuthMiddleware.Optional, tagUser}
	app.Get("/login", with(optional, cfg.Auth.LoginPage)...)
	app.Post("/login", with(optional, cfg.Auth.Login)...)
	app.Get("/register", with(optional, cfg.Auth.RegisterPage)...)
	app.Post("/register", with(optional, cfg.Auth.Register)...)

	required := []fiber.Handler{cfg.AuthMiddleware.Handle, tagUser}
	app.Get("/logout", with(required, cfg.Auth.Logout)...)
	for _, path := range []string{"/", "/index"} {
		app.Get(path, with(required, cfg.Interactions.Index)...)
		app.Post(path, with(required, cfg.Interactions.Create)...)
	}
	app.Get("/clients", with(required, cfg.Clients.List)...)
	app.Post("/clients", with(required, cfg.Clients.Create)...)

	interactions := app.Group("/interaction", required...)
	interactions.Get("/:id/view", cfg.Interactions.View)
	interactions.Get("/:id/edit", cfg.Interactions.EditPage)
	interactions.Post("/:id/edit", cfg.Interactions.Edit)
	interactions.Post("/:id/delete", cfg.Interactions.Delete)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, tagUser, auth.RequireSupervisor(cfg.Policy))
	admin.Get("/dashboard", cfg.Admin.Dashboard)
	admin.Get("/users", cfg.Admin.Users)
	admin.Get("/all_interactions", cfg.Admin.AllInteractions)
	admin.Get("/reports", cfg.Admin.Reports)
	admin.Get("/user/add", cfg.Admin.AddUserPage)
	admin.Post("/user/add", cfg.Admin.AddUser)
	admin.Get("/user/:id", cfg.Admin.UserStats)
	admin.Get("/user/:id/edit", cfg.Admin.EditUserPage)
	admin.Post("/user/:id/edit", cfg.Admin.EditUser)
	admin.Post("/user/:id/toggle_admin", cfg.Admin.ToggleSupervisor)
	admin.Post("/user/:id/delete", cfg.Admin.DeleteUser)
}

func with(chain []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, handler)
}
