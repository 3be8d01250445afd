package domain

import "time"

// InteractionStatus enumerates lifecycle states for interactions.
type InteractionStatus string

const (
	StatusOpen       InteractionStatus = "Aberto"
	StatusInProgress InteractionStatus = "Em Andamento"
	StatusResolved   InteractionStatus = "Resolvido"
	StatusPending    InteractionStatus = "Pendente"
)

// Statuses lists every status in display order.
var Statuses = []InteractionStatus{StatusOpen, StatusInProgress, StatusResolved, StatusPending}

// Valid reports whether s is one of the enumerated statuses.
func (s InteractionStatus) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// InteractionCategory classifies the subject of an interaction.
type InteractionCategory string

const (
	CategoryTechnicalQuestion InteractionCategory = "Dúvida Técnica"
	CategorySupport           InteractionCategory = "Suporte"
)

var Categories = []InteractionCategory{CategoryTechnicalQuestion, CategorySupport}

func (c InteractionCategory) Valid() bool {
	for _, candidate := range Categories {
		if c == candidate {
			return true
		}
	}
	return false
}

// InteractionChannel is the medium the client used.
type InteractionChannel string

const (
	ChannelWhatsApp InteractionChannel = "WhatsApp"
)

var Channels = []InteractionChannel{ChannelWhatsApp}

func (c InteractionChannel) Valid() bool {
	for _, candidate := range Channels {
		if c == candidate {
			return true
		}
	}
	return false
}

// Interaction is one logged customer-support contact.
//
// ClientName, ClientPhone and Username are read-only views joined from the
// client registry and the credential store.
type Interaction struct {
	ID               int64
	UserID           int64
	ClientID         int64
	ClientName       string
	ClientPhone      string
	Username         string
	Channel          InteractionChannel
	Category         InteractionCategory
	Description      string
	Status           InteractionStatus
	HadRemoteSession bool
	StartTime        time.Time
	EndTime          *time.Time
}

// ApplyStatus sets the status and keeps EndTime consistent with it.
func (i *Interaction) ApplyStatus(status InteractionStatus, at time.Time) {
	if status == StatusResolved {
		if i.EndTime == nil {
			end := at
			i.EndTime = &end
		}
	} else {
		i.EndTime = nil
	}
	i.Status = status
}
