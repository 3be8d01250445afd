package dto

import (
	"time"

	"github.com/spec-kit/interaction-tracker/internal/domain"
)

// InteractionResponse is the JSON view of an interaction.
type InteractionResponse struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Username         string     `json:"username"`
	ClientID         int64      `json:"client_id"`
	ClientName       string     `json:"client_name"`
	ClientPhone      string     `json:"client_phone"`
	Channel          string     `json:"channel"`
	Category         string     `json:"category"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	HadRemoteSession bool       `json:"had_remote_session"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID           int64     `json:"id"`
	UserID       *int64    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	FieldChanged string    `json:"field_changed"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
}

// UserResponse omits the password hash.
type UserResponse struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	IsSupervisor bool      `json:"is_supervisor"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClientResponse payload.
type ClientResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// GroupCountResponse is one aggregate bucket.
type GroupCountResponse struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// FormChoices lists the allowed values of the interaction form selects.
type FormChoices struct {
	Channels   []string `json:"channels"`
	Categories []string `json:"categories"`
	Statuses   []string `json:"statuses"`
}

// InteractionChoices returns the select options of the interaction form.
func InteractionChoices() FormChoices {
	choices := FormChoices{}
	for _, c := range domain.Channels {
		choices.Channels = append(choices.Channels, string(c))
	}
	for _, c := range domain.Categories {
		choices.Categories = append(choices.Categories, string(c))
	}
	for _, s := range domain.Statuses {
		choices.Statuses = append(choices.Statuses, string(s))
	}
	return choices
}

func NewInteractionResponse(i *domain.Interaction) InteractionResponse {
	return InteractionResponse{
		ID:               i.ID,
		UserID:           i.UserID,
		Username:         i.Username,
		ClientID:         i.ClientID,
		ClientName:       i.ClientName,
		ClientPhone:      i.ClientPhone,
		Channel:          string(i.Channel),
		Category:         string(i.Category),
		Description:      i.Description,
		Status:           string(i.Status),
		HadRemoteSession: i.HadRemoteSession,
		StartTime:        i.StartTime,
		EndTime:          i.EndTime,
	}
}

func NewInteractionList(items []domain.Interaction) []InteractionResponse {
	out := make([]InteractionResponse, 0, len(items))
	for i := range items {
		out = append(out, NewInteractionResponse(&items[i]))
	}
	return out
}

func NewHistoryList(items []domain.InteractionHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(items))
	for _, h := range items {
		out = append(out, HistoryResponse{
			ID:           h.ID,
			UserID:       h.UserID,
			Username:     h.Username,
			Timestamp:    h.Timestamp,
			FieldChanged: h.FieldChanged,
			OldValue:     h.OldValue,
			NewValue:     h.NewValue,
		})
	}
	return out
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, IsSupervisor: u.IsSupervisor, CreatedAt: u.CreatedAt}
}

func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

func NewClientResponse(c *domain.Client) ClientResponse {
	return ClientResponse{ID: c.ID, Name: c.Name, Phone: c.Phone}
}

func NewClientList(clients []domain.Client) []ClientResponse {
	out := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		out = append(out, NewClientResponse(&clients[i]))
	}
	return out
}

func NewGroupCounts(groups []domain.GroupCount) []GroupCountResponse {
	out := make([]GroupCountResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupCountResponse{Label: g.Label, Count: g.Count})
	}
	return out
}
