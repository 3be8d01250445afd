package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/api/dto"
	"github.com/spec-kit/interaction-tracker/internal/service"
)

// ClientsHandler serves the client registry.
type ClientsHandler struct {
	service *service.ClientService
	flashes *Flashes
}

// NewClientsHandler constructs handler.
func NewClientsHandler(clients *service.ClientService, flashes *Flashes) *ClientsHandler {
	return &ClientsHandler{service: clients, flashes: flashes}
}

// List GET /clients.
func (h *ClientsHandler) List(c *fiber.Ctx) error {
	clients, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return page(c, h.flashes, fiber.Map{"clients": dto.NewClientList(clients)})
}

// Create POST /clients. The index preselects the new client afterwards.
func (h *ClientsHandler) Create(c *fiber.Ctx) error {
	var req dto.ClientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	client, err := h.service.Create(c.UserContext(), req.Name, req.Phone)
	if err != nil {
		return err
	}
	return done(c, h.flashes, fmt.Sprintf("/index?new_client_id=%d", client.ID), "client registered")
}
