package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/api/dto"
	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/domain"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewLoginRequired()
	}
	return principal.Actor(), nil
}

func pathID(c *fiber.Ctx, resource string) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound(resource, map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

// bind decodes a JSON or form body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

// page renders a JSON page and drains pending flash messages into it.
func page(c *fiber.Ctx, flashes *Flashes, data fiber.Map) error {
	data["flashes"] = flashes.Drain(c)
	return c.JSON(data)
}

// done queues a success flash and answers 303 See Other.
func done(c *fiber.Ctx, flashes *Flashes, location, message string) error {
	flashes.Push(c, apperrors.FlashSuccess, message)
	return c.Redirect(location, fiber.StatusSeeOther)
}
