package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// MsgPhoneTaken is shown when a client phone is already registered.
const MsgPhoneTaken = "phone already registered"

// ClientService manages the client registry.
type ClientService struct {
	clients repository.ClientRepository
}

// NewClientService constructs the service.
func NewClientService(clients repository.ClientRepository) *ClientService {
	return &ClientService{clients: clients}
}

// Create registers a client. A duplicate phone is a soft conflict.
func (s *ClientService) Create(ctx context.Context, name, phone string) (*domain.Client, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	details := map[string]any{}
	if name == "" {
		details["name"] = "this field is required"
	}
	if phone == "" {
		details["phone"] = "this field is required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details)
	}

	client := &domain.Client{Name: name, Phone: phone}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, mapClientConflict(err)
	}
	return client, nil
}

// Get returns one client.
func (s *ClientService) Get(ctx context.Context, id int64) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("client", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return client, nil
}

// List returns all clients ordered by name.
func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return clients, nil
}
