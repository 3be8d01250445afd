package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/api/dto"
	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/config"
	"github.com/spec-kit/interaction-tracker/internal/service"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// AuthHandler serves login, logout and self-registration.
type AuthHandler struct {
	service *service.AuthService
	flashes *Flashes
	cookie  config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, flashes *Flashes, cookie config.AuthConfig) *AuthHandler {
	return &AuthHandler{service: authService, flashes: flashes, cookie: cookie}
}

// LoginPage GET /login.
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); ok {
		return c.Redirect("/index", fiber.StatusSeeOther)
	}
	return page(c, h.flashes, fiber.Map{
		"form": fiber.Map{"fields": []string{"username", "password", "remember_me"}},
	})
}

// Login POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); ok {
		return c.Redirect("/index", fiber.StatusSeeOther)
	}
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.service.Login(c.UserContext(), req.Username, req.Password, bool(req.RememberMe))
	if err != nil {
		return err
	}

	cookie := &fiber.Cookie{
		Name:     h.cookie.CookieName,
		Value:    session.Token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if session.Remember {
		cookie.Expires = session.ExpiresAt
	}
	c.Cookie(cookie)

	h.flashes.PushUser(c, session.User.ID, apperrors.FlashSuccess, "login successful")
	if err := c.Redirect("/index", fiber.StatusSeeOther); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       dto.NewUserResponse(session.User),
	})
}

// Logout GET /logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewLoginRequired()
	}
	if err := h.service.Logout(c.UserContext(), principal.TokenID, principal.ExpiresAt); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookie.CookieSecure,
	})
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// RegisterPage GET /register.
func (h *AuthHandler) RegisterPage(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); ok {
		return c.Redirect("/index", fiber.StatusSeeOther)
	}
	return page(c, h.flashes, fiber.Map{
		"form": fiber.Map{"fields": []string{"username", "password", "password2"}},
	})
}

// Register POST /register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); ok {
		return c.Redirect("/index", fiber.StatusSeeOther)
	}
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.service.Register(c.UserContext(), req.Username, req.Password, req.Password2); err != nil {
		return err
	}
	return done(c, h.flashes, "/login", "registration successful, you can now log in")
}
