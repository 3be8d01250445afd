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

// InteractionService manages the interaction ledger and its status history.
type InteractionService struct {
	tx             repository.TxRunner
	interactions   repository.InteractionRepository
	clients        repository.ClientRepository
	history        repository.InteractionHistoryRepository
	dispatcher     events.Dispatcher
	policy         auth.Policy
	historyEnabled bool
	location       *time.Location
	now            func() time.Time
}

// InteractionDependencies wires the service.
type InteractionDependencies struct {
	Tx             repository.TxRunner
	Interactions   repository.InteractionRepository
	Clients        repository.ClientRepository
	History        repository.InteractionHistoryRepository
	Dispatcher     events.Dispatcher
	Policy         auth.Policy
	HistoryEnabled bool
	Location       *time.Location
	Clock          func() time.Time
}

// InteractionInput is the editable part of an interaction. The client is
// referenced either by ClientID or by a name and phone pair.
type InteractionInput struct {
	ClientID         *int64
	ClientName       string
	ClientPhone      string
	Channel          domain.InteractionChannel
	Category         domain.InteractionCategory
	Description      string
	Status           domain.InteractionStatus
	HadRemoteSession bool
}

// InteractionDetail is an interaction with what the actor may see and do.
type InteractionDetail struct {
	Interaction    *domain.Interaction
	History        []domain.InteractionHistory
	HistoryVisible bool
	CanEdit        bool
	CanDelete      bool
}

// NewInteractionService constructs the service.
func NewInteractionService(deps InteractionDependencies) *InteractionService {
	s := &InteractionService{
		tx:             deps.Tx,
		interactions:   deps.Interactions,
		clients:        deps.Clients,
		history:        deps.History,
		dispatcher:     deps.Dispatcher,
		policy:         deps.Policy,
		historyEnabled: deps.HistoryEnabled,
		location:       deps.Location,
		now:            deps.Clock,
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location is the zone used for day windows.
func (s *InteractionService) Location() *time.Location {
	return s.location
}

// Now returns the service clock.
func (s *InteractionService) Now() time.Time {
	return s.now()
}

// Create logs a new interaction owned by actor. The client lookup, the insert
// and the initial history row share one transaction.
func (s *InteractionService) Create(ctx context.Context, actor domain.Actor, input InteractionInput) (*domain.Interaction, error) {
	input = normalizeInput(input)
	if input.Status == "" {
		input.Status = domain.StatusOpen
	}
	if err := validateInteractionInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var created *domain.Interaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		clientID, err := s.resolveClient(ctx, input)
		if err != nil {
			return err
		}

		interaction := &domain.Interaction{
			UserID:           actor.ID,
			ClientID:         clientID,
			Channel:          input.Channel,
			Category:         input.Category,
			Description:      input.Description,
			HadRemoteSession: input.HadRemoteSession,
			StartTime:        now,
		}
		interaction.ApplyStatus(input.Status, now)
		if err := s.interactions.Create(ctx, interaction); err != nil {
			return err
		}

		if s.historyEnabled {
			if err := s.recordStatusChange(ctx, actor, interaction.ID, domain.HistoryInitialValue, string(interaction.Status), now); err != nil {
				return err
			}
		}

		created, err = s.interactions.GetByID(ctx, interaction.ID)
		return err
	})
	if err != nil {
		return nil, mapClientConflict(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventInteractionCreated,
		SubjectID: created.ID,
		Actor:     events.ActorFrom(actor),
		Payload: events.InteractionCreatedPayload{
			OwnerID:  created.UserID,
			ClientID: created.ClientID,
			Channel:  created.Channel,
			Category: created.Category,
			Status:   created.Status,
		},
	})
	return created, nil
}

// Update edits an interaction. A status change appends exactly one history
// row in the same transaction; other field changes are not audited.
func (s *InteractionService) Update(ctx context.Context, actor domain.Actor, id int64, input InteractionInput) (*domain.Interaction, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanEditInteraction(actor, current).Err(); err != nil {
		return nil, err
	}

	input = normalizeInput(input)
	if input.Status == "" {
		input.Status = current.Status
	}
	if err := validateInteractionInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var oldStatus domain.InteractionStatus
	var updated *domain.Interaction
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// the audit pair must compare against the row as stored now
		current, err := s.interactions.GetForUpdate(ctx, id)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := s.policy.CanEditInteraction(actor, current).Err(); err != nil {
			return err
		}
		oldStatus = current.Status

		clientID, err := s.resolveClient(ctx, input)
		if err != nil {
			return err
		}

		current.ClientID = clientID
		current.Channel = input.Channel
		current.Category = input.Category
		current.Description = input.Description
		current.HadRemoteSession = input.HadRemoteSession
		if input.Status != oldStatus {
			current.ApplyStatus(input.Status, now)
		}
		if err := s.interactions.Update(ctx, current); err != nil {
			return err
		}

		if current.Status != oldStatus {
			if err := s.recordStatusChange(ctx, actor, current.ID, string(oldStatus), string(current.Status), now); err != nil {
				return err
			}
		}

		updated, err = s.interactions.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, mapClientConflict(err)
	}

	if updated.Status != oldStatus {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventInteractionStatusChanged,
			SubjectID: updated.ID,
			Actor:     events.ActorFrom(actor),
			Payload: events.InteractionStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: updated.Status,
			},
		})
	}
	return updated, nil
}

// Delete removes an interaction and, by cascade, its history.
func (s *InteractionService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDeleteInteraction(actor, current).Err(); err != nil {
		return err
	}
	if err := s.interactions.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventInteractionDeleted,
		SubjectID: id,
		Actor:     events.ActorFrom(actor),
		Payload:   events.InteractionDeletedPayload{OwnerID: current.UserID},
	})
	return nil
}

// Get returns an interaction for viewing. History is loaded for supervisors only.
func (s *InteractionService) Get(ctx context.Context, actor domain.Actor, id int64) (*InteractionDetail, error) {
	interaction, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanViewInteraction(actor, interaction).Err(); err != nil {
		return nil, err
	}

	detail := &InteractionDetail{
		Interaction:    interaction,
		History:        []domain.InteractionHistory{},
		HistoryVisible: s.policy.CanViewHistory(actor),
		CanEdit:        s.policy.CanEditInteraction(actor, interaction).Allowed,
		CanDelete:      s.policy.CanDeleteInteraction(actor, interaction).Allowed,
	}
	if detail.HistoryVisible {
		history, err := s.history.ListByInteraction(ctx, id)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		detail.History = history
	}
	return detail, nil
}

// GetForEdit returns the current values of an interaction the actor may edit.
func (s *InteractionService) GetForEdit(ctx context.Context, actor domain.Actor, id int64) (*domain.Interaction, error) {
	interaction, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanEditInteraction(actor, interaction).Err(); err != nil {
		return nil, err
	}
	return interaction, nil
}

// ListDay returns interactions started on day, newest first. Agents only see
// their own rows.
func (s *InteractionService) ListDay(ctx context.Context, actor domain.Actor, day time.Time) ([]domain.Interaction, error) {
	start, end := DayWindow(day, s.location)
	items, err := s.interactions.List(ctx, repository.InteractionFilter{
		UserID:    s.policy.OwnerScope(actor),
		StartFrom: &start,
		StartTo:   &end,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// ListAll returns every interaction; supervisors only.
func (s *InteractionService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.Interaction, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	items, err := s.interactions.List(ctx, repository.InteractionFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

func (s *InteractionService) load(ctx context.Context, id int64) (*domain.Interaction, error) {
	interaction, err := s.interactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("interaction", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return interaction, nil
}

// resolveClient returns the referenced client id, creating the client by
// phone when it is not registered yet.
func (s *InteractionService) resolveClient(ctx context.Context, input InteractionInput) (int64, error) {
	if input.ClientID != nil {
		client, err := s.clients.GetByID(ctx, *input.ClientID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, apperrors.NewFieldError("client_id", "unknown client")
			}
			return 0, err
		}
		return client.ID, nil
	}

	existing, err := s.clients.GetByPhone(ctx, input.ClientPhone)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	client := &domain.Client{Name: input.ClientName, Phone: input.ClientPhone}
	if err := s.clients.Create(ctx, client); err != nil {
		return 0, err
	}
	return client.ID, nil
}

func (s *InteractionService) recordStatusChange(ctx context.Context, actor domain.Actor, interactionID int64, oldValue, newValue string, at time.Time) error {
	actorID := actor.ID
	return s.history.Create(ctx, &domain.InteractionHistory{
		InteractionID: interactionID,
		UserID:        &actorID,
		Timestamp:     at,
		FieldChanged:  domain.HistoryFieldStatus,
		OldValue:      oldValue,
		NewValue:      newValue,
	})
}

func (s *InteractionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func normalizeInput(input InteractionInput) InteractionInput {
	input.ClientName = strings.TrimSpace(input.ClientName)
	input.ClientPhone = strings.TrimSpace(input.ClientPhone)
	input.Description = strings.TrimSpace(input.Description)
	return input
}

func validateInteractionInput(input InteractionInput) error {
	details := map[string]any{}
	if input.ClientID == nil {
		if input.ClientName == "" {
			details["client_name"] = "this field is required"
		}
		if input.ClientPhone == "" {
			details["client_phone"] = "this field is required"
		}
	}
	if !input.Channel.Valid() {
		details["channel"] = "not a valid choice"
	}
	if !input.Category.Valid() {
		details["category"] = "not a valid choice"
	}
	if !input.Status.Valid() {
		details["status"] = "not a valid choice"
	}
	if input.Description == "" {
		details["description"] = "this field is required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

func mapClientConflict(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflictRedirect(MsgPhoneTaken, "/index")
	}
	return err
}
