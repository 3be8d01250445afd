package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller and the session it used.
type Principal struct {
	User      *domain.User
	TokenID   string
	ExpiresAt time.Time
}

// Actor returns the identity handed to the policy.
func (p *Principal) Actor() domain.Actor {
	return p.User.Actor()
}

// AuthMiddleware validates session tokens and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	users      repository.UserRepository
	revoked    RevocationList
	cookieName string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, revoked RevocationList, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, revoked: revoked, cookieName: cookieName}
}

// Handle enforces authentication for protected routes. Anonymous callers are
// redirected to the login page.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.authenticate(c)
	if err != nil {
		return err
	}
	if principal == nil {
		return apperrors.NewLoginRequired()
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional attaches a principal when a valid session is present and never
// rejects the request.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	principal, err := m.authenticate(c)
	if err != nil {
		return err
	}
	if principal != nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

// authenticate returns nil without error when the request carries no usable session.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*Principal, error) {
	raw := m.tokenFromRequest(c)
	if raw == "" {
		return nil, nil
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, nil
	}

	ctx := c.UserContext()
	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if revoked {
			return nil, nil
		}
	}

	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}

	principal := &Principal{User: user, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

func (m *AuthMiddleware) tokenFromRequest(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(m.cookieName)
}

// RequireSupervisor gates a route group to supervisors with a soft denial.
func RequireSupervisor(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewLoginRequired()
		}
		if err := policy.RequireSupervisor(principal.Actor()).Err(); err != nil {
			return err
		}
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
