package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/api/dto"
	"github.com/spec-kit/interaction-tracker/internal/service"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// InteractionsHandler manages the agent-facing interaction pages.
type InteractionsHandler struct {
	service *service.InteractionService
	clients *service.ClientService
	flashes *Flashes
}

// NewInteractionsHandler constructs handler.
func NewInteractionsHandler(interactions *service.InteractionService, clients *service.ClientService, flashes *Flashes) *InteractionsHandler {
	return &InteractionsHandler{service: interactions, clients: clients, flashes: flashes}
}

// Index GET / and /index: the day's interactions plus the form choices.
func (h *InteractionsHandler) Index(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	day, ok := service.ParseSearchDate(c.Query("search_date"), h.service.Now(), h.service.Location())
	if !ok {
		h.flashes.Push(c, apperrors.FlashWarning, "invalid date format")
	}
	items, err := h.service.ListDay(c.UserContext(), actor, day)
	if err != nil {
		return err
	}
	clients, err := h.clients.List(c.UserContext())
	if err != nil {
		return err
	}

	data := fiber.Map{
		"date":         day.Format(service.SearchDateLayout),
		"interactions": dto.NewInteractionList(items),
		"choices":      dto.InteractionChoices(),
		"clients":      dto.NewClientList(clients),
	}
	if raw := c.Query("new_client_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if client, err := h.clients.Get(c.UserContext(), id); err == nil {
				data["selected_client"] = dto.NewClientResponse(client)
			}
		}
	}
	return page(c, h.flashes, data)
}

// Create POST / and /index.
func (h *InteractionsHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.InteractionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.service.Create(c.UserContext(), actor, req.Input()); err != nil {
		return err
	}
	return done(c, h.flashes, "/index", "interaction logged")
}

// EditPage GET /interaction/:id/edit.
func (h *InteractionsHandler) EditPage(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "interaction")
	if err != nil {
		return err
	}
	interaction, err := h.service.GetForEdit(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{
		"interaction": dto.NewInteractionResponse(interaction),
		"choices":     dto.InteractionChoices(),
	})
}

// Edit POST /interaction/:id/edit.
func (h *InteractionsHandler) Edit(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "interaction")
	if err != nil {
		return err
	}
	var req dto.InteractionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.service.Update(c.UserContext(), actor, id, req.Input()); err != nil {
		return err
	}
	return done(c, h.flashes, "/index", "interaction updated")
}

// Delete POST /interaction/:id/delete.
func (h *InteractionsHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "interaction")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return done(c, h.flashes, "/index", "interaction deleted")
}

// View GET /interaction/:id/view. The history is only included for supervisors.
func (h *InteractionsHandler) View(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "interaction")
	if err != nil {
		return err
	}
	detail, err := h.service.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	data := fiber.Map{
		"interaction":     dto.NewInteractionResponse(detail.Interaction),
		"history_visible": detail.HistoryVisible,
		"can_edit":        detail.CanEdit,
		"can_delete":      detail.CanDelete,
	}
	if detail.HistoryVisible {
		data["history"] = dto.NewHistoryList(detail.History)
	}
	return page(c, h.flashes, data)
}
