package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// Account messages shown to users.
const (
	MsgUsernameTaken      = "username already in use"
	MsgInvalidCredentials = "invalid username or password"
	MsgPasswordMismatch   = "passwords must match"
	MsgFieldRequired      = "this field is required"
)

const maxUsernameLength = 64

// Session is an issued login.
type Session struct {
	User      *domain.User
	Token     string
	TokenID   string
	ExpiresAt time.Time
	Remember  bool
}

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	users       repository.UserRepository
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenManager
	revoked     auth.RevocationList
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	Users       repository.UserRepository
	Hasher      *auth.PasswordHasher
	Tokens      *auth.TokenManager
	Revoked     auth.RevocationList
	SessionTTL  time.Duration
	RememberTTL time.Duration
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.Users,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		revoked:     deps.Revoked,
		sessionTTL:  deps.SessionTTL,
		rememberTTL: deps.RememberTTL,
	}
}

// Register creates an agent account.
func (s *AuthService) Register(ctx context.Context, username, password, confirm string) (*domain.User, error) {
	return createAccount(ctx, s.users, s.hasher, username, password, confirm, false)
}

// CreateAdmin creates a supervisor account; used by the manage command.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, confirm string) (*domain.User, error) {
	return createAccount(ctx, s.users, s.hasher, username, password, confirm, true)
}

// Login checks credentials and issues a session. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string, remember bool) (*Session, error) {
	username = strings.TrimSpace(username)
	details := map[string]any{}
	if username == "" {
		details["username"] = MsgFieldRequired
	}
	if password == "" {
		details["password"] = MsgFieldRequired
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		s.hasher.CompareDummy(password)
		return nil, invalidCredentials()
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, invalidCredentials()
	}

	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}
	issued, err := s.tokens.GenerateToken(user.ID, ttl)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{
		User:      user,
		Token:     issued.Token,
		TokenID:   issued.ID,
		ExpiresAt: issued.ExpiresAt,
		Remember:  remember,
	}, nil
}

// Logout revokes the session token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.revoked == nil || tokenID == "" {
		return nil
	}
	if err := s.revoked.Revoke(ctx, tokenID, expiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func invalidCredentials() error {
	return apperrors.NewRedirectError("INVALID_CREDENTIALS", MsgInvalidCredentials, "/login", apperrors.FlashDanger)
}

func createAccount(ctx context.Context, users repository.UserRepository, hasher *auth.PasswordHasher, username, password, confirm string, supervisor bool) (*domain.User, error) {
	username = strings.TrimSpace(username)
	details := credentialErrors(username, password, confirm, true)
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details)
	}
	if err := ensureUsernameFree(ctx, users, username); err != nil {
		return nil, err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{Username: username, PasswordHash: hash, IsSupervisor: supervisor}
	if err := users.Create(ctx, user); err != nil {
		return nil, mapUsernameConflict(err)
	}
	return user, nil
}

// credentialErrors validates a username and password pair. With
// passwordRequired false a blank password means "keep the current one".
func credentialErrors(username, password, confirm string, passwordRequired bool) map[string]any {
	details := map[string]any{}
	switch {
	case username == "":
		details["username"] = MsgFieldRequired
	case utf8.RuneCountInString(username) > maxUsernameLength:
		details["username"] = "must be at most 64 characters"
	}
	if password == "" && passwordRequired {
		details["password"] = MsgFieldRequired
	}
	if password != confirm {
		details["password2"] = MsgPasswordMismatch
	}
	return details
}

func ensureUsernameFree(ctx context.Context, users repository.UserRepository, username string) error {
	_, err := users.GetByUsername(ctx, username)
	if err == nil {
		return apperrors.NewFieldError("username", MsgUsernameTaken)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	return nil
}

func mapUsernameConflict(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewFieldError("username", MsgUsernameTaken)
	}
	return apperrors.MapError(err)
}
