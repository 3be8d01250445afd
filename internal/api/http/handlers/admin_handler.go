package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/api/dto"
	"github.com/spec-kit/interaction-tracker/internal/service"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// AdminHandler serves the supervisor area: statistics and user management.
type AdminHandler struct {
	interactions *service.InteractionService
	reports      *service.ReportService
	users        *service.UserService
	flashes      *Flashes
}

// NewAdminHandler constructs handler.
func NewAdminHandler(interactions *service.InteractionService, reports *service.ReportService, users *service.UserService, flashes *Flashes) *AdminHandler {
	return &AdminHandler{interactions: interactions, reports: reports, users: users, flashes: flashes}
}

// Dashboard GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	day, ok := service.ParseSearchDate(c.Query("search_date"), h.interactions.Now(), h.interactions.Location())
	if !ok {
		h.flashes.Push(c, apperrors.FlashWarning, "invalid date format")
	}
	dash, err := h.reports.Dashboard(c.UserContext(), actor, day)
	if err != nil {
		return err
	}
	items, err := h.interactions.ListDay(c.UserContext(), actor, day)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{
		"date":          dash.Day.Format(service.SearchDateLayout),
		"total":         dash.Total,
		"status_counts": dto.NewGroupCounts(dash.StatusCounts),
		"status_chart":  dash.StatusChart,
		"interactions":  dto.NewInteractionList(items),
	})
}

// UserStats GET /admin/user/:id.
func (h *AdminHandler) UserStats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	stats, err := h.reports.UserStats(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{
		"user":            dto.NewUserResponse(stats.User),
		"total":           stats.Total,
		"status_counts":   dto.NewGroupCounts(stats.StatusCounts),
		"category_counts": dto.NewGroupCounts(stats.CategoryCounts),
		"status_chart":    stats.StatusChart,
		"category_chart":  stats.CategoryChart,
		"interactions":    dto.NewInteractionList(stats.Interactions),
	})
}

// Users GET /admin/users.
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	users, err := h.users.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{"users": dto.NewUserList(users)})
}

// ToggleSupervisor POST /admin/user/:id/toggle_admin.
func (h *AdminHandler) ToggleSupervisor(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	user, err := h.users.ToggleSupervisor(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	message := fmt.Sprintf("%s is no longer a supervisor", user.Username)
	if user.IsSupervisor {
		message = fmt.Sprintf("%s is now a supervisor", user.Username)
	}
	return done(c, h.flashes, "/admin/users", message)
}

// AddUserPage GET /admin/user/add.
func (h *AdminHandler) AddUserPage(c *fiber.Ctx) error {
	return page(c, h.flashes, fiber.Map{
		"form": fiber.Map{"fields": []string{"username", "password", "password2", "is_supervisor"}},
	})
}

// AddUser POST /admin/user/add.
func (h *AdminHandler) AddUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AddUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.Add(c.UserContext(), actor, req.Input())
	if err != nil {
		return err
	}
	return done(c, h.flashes, "/admin/users", fmt.Sprintf("user %s created", user.Username))
}

// EditUserPage GET /admin/user/:id/edit.
func (h *AdminHandler) EditUserPage(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{
		"user": dto.NewUserResponse(user),
		"form": fiber.Map{"fields": []string{"username", "password", "password2"}},
	})
}

// EditUser POST /admin/user/:id/edit.
func (h *AdminHandler) EditUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	var req dto.EditUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.users.Edit(c.UserContext(), actor, id, req.Input()); err != nil {
		return err
	}
	return done(c, h.flashes, "/admin/users", "user updated")
}

// DeleteUser POST /admin/user/:id/delete.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	user, err := h.users.Delete(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return done(c, h.flashes, "/admin/users", fmt.Sprintf("user %s and their interactions were deleted", user.Username))
}

// AllInteractions GET /admin/all_interactions.
func (h *AdminHandler) AllInteractions(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	items, err := h.interactions.ListAll(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{"interactions": dto.NewInteractionList(items)})
}

// Reports GET /admin/reports.
func (h *AdminHandler) Reports(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	reports, err := h.reports.Reports(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{
		"category_counts": dto.NewGroupCounts(reports.CategoryCounts),
		"category_chart":  reports.CategoryChart,
		"agent_counts":    dto.NewGroupCounts(reports.AgentCounts),
		"agent_chart":     reports.AgentChart,
	})
}
