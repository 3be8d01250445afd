package handlers

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/flash"
)

const (
	flashCookie  = "flash"
	pendingLocal = "flash_pending"
)

// Flashes queues messages for the next page a client loads. Signed-in users
// use the flash store; anonymous clients carry them in a short-lived cookie.
type Flashes struct {
	store  flash.Store
	logger *zap.Logger
	secure bool
}

// NewFlashes builds the flash helper.
func NewFlashes(store flash.Store, logger *zap.Logger, secureCookie bool) *Flashes {
	return &Flashes{store: store, logger: logger, secure: secureCookie}
}

// Push queues a message for the caller of c.
func (f *Flashes) Push(c *fiber.Ctx, level, text string) {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		f.PushUser(c, principal.User.ID, level, text)
		return
	}

	pending := f.anonymous(c)
	pending = append(pending, flash.Message{Level: level, Text: text})
	c.Locals(pendingLocal, pending)

	payload, err := json.Marshal(pending)
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		Secure:   f.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// PushUser queues a message for a specific user, e.g. right after login.
func (f *Flashes) PushUser(c *fiber.Ctx, userID int64, level, text string) {
	if err := f.store.Push(c.UserContext(), userID, flash.Message{Level: level, Text: text}); err != nil {
		f.logger.Warn("flash push failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Drain returns and clears every pending message of the caller.
func (f *Flashes) Drain(c *fiber.Ctx) []flash.Message {
	messages := f.anonymous(c)
	if len(messages) > 0 || c.Cookies(flashCookie) != "" {
		c.Locals(pendingLocal, []flash.Message{})
		c.ClearCookie(flashCookie)
	}

	if principal, ok := auth.PrincipalFromContext(c); ok {
		stored, err := f.store.Drain(c.UserContext(), principal.User.ID)
		if err != nil {
			f.logger.Warn("flash drain failed", zap.Int64("user_id", principal.User.ID), zap.Error(err))
		}
		messages = append(messages, stored...)
	}
	if messages == nil {
		messages = []flash.Message{}
	}
	return messages
}

// anonymous returns the cookie messages, including those pushed during this request.
func (f *Flashes) anonymous(c *fiber.Ctx) []flash.Message {
	if pending, ok := c.Locals(pendingLocal).([]flash.Message); ok {
		return pending
	}
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var messages []flash.Message
	if err := json.Unmarshal(decoded, &messages); err != nil {
		return nil
	}
	return messages
}
