package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/events"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// AddUserInput is a supervisor-created account.
type AddUserInput struct {
	Username     string
	Password     string
	Confirm      string
	IsSupervisor bool
}

// EditUserInput changes a username and optionally the password.
type EditUserInput struct {
	Username string
	Password string
	Confirm  string
}

// UserService implements supervisor account management.
type UserService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	policy     auth.Policy
	dispatcher events.Dispatcher
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, hasher *auth.PasswordHasher, policy auth.Policy, dispatcher events.Dispatcher) *UserService {
	return &UserService{users: users, hasher: hasher, policy: policy, dispatcher: dispatcher}
}

// List returns every account ordered by username.
func (s *UserService) List(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.User, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Add creates an account on behalf of a supervisor.
func (s *UserService) Add(ctx context.Context, actor domain.Actor, input AddUserInput) (*domain.User, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	return createAccount(ctx, s.users, s.hasher, input.Username, input.Password, input.Confirm, input.IsSupervisor)
}

// Edit renames an account and replaces the password when one is given.
// Uniqueness is only checked when the username changes.
func (s *UserService) Edit(ctx context.Context, actor domain.Actor, id int64, input EditUserInput) (*domain.User, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(input.Username)
	if details := credentialErrors(username, input.Password, input.Confirm, false); len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details)
	}
	if username != user.Username {
		if err := ensureUsernameFree(ctx, s.users, username); err != nil {
			return nil, err
		}
		user.Username = username
	}
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUsernameConflict(err)
	}
	return user, nil
}

// Delete removes an account and everything it owns. Supervisors cannot
// delete themselves.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id int64) (*domain.User, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanDeleteUser(actor, user).Err(); err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventUserDeleted,
			SubjectID: id,
			Actor:     events.ActorFrom(actor),
			Timestamp: time.Now(),
			Payload:   events.UserDeletedPayload{Username: user.Username},
		})
	}
	return user, nil
}

// ToggleSupervisor flips the supervisor flag of an account. A supervisor
// cannot demote themselves.
func (s *UserService) ToggleSupervisor(ctx context.Context, actor domain.Actor, id int64) (*domain.User, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanToggleSupervisor(actor, user).Err(); err != nil {
		return nil, err
	}
	user.IsSupervisor = !user.IsSupervisor
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *UserService) load(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
