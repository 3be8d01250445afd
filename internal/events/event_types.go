package events

import (
	"time"

	"github.com/spec-kit/interaction-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInteractionCreated       EventType = "interaction_created"
	EventInteractionStatusChanged EventType = "interaction_status_changed"
	EventInteractionDeleted       EventType = "interaction_deleted"
	EventUserDeleted              EventType = "user_deleted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	IsSupervisor bool   `json:"is_supervisor"`
}

// ActorFrom copies the policy identity into event metadata.
func ActorFrom(actor domain.Actor) Actor {
	return Actor{UserID: actor.ID, Username: actor.Username, IsSupervisor: actor.IsSupervisor}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID int64       `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// InteractionCreatedPayload payload.
type InteractionCreatedPayload struct {
	OwnerID  int64                      `json:"owner_id"`
	ClientID int64                      `json:"client_id"`
	Channel  domain.InteractionChannel  `json:"channel"`
	Category domain.InteractionCategory `json:"category"`
	Status   domain.InteractionStatus   `json:"status"`
}

// InteractionStatusChangedPayload payload.
type InteractionStatusChangedPayload struct {
	OldStatus domain.InteractionStatus `json:"old_status"`
	NewStatus domain.InteractionStatus `json:"new_status"`
}

// InteractionDeletedPayload payload.
type InteractionDeletedPayload struct {
	OwnerID int64 `json:"owner_id"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Username string `json:"username"`
}
