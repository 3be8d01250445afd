package domain

import "time"

// HistoryFieldStatus is the only field tracked by the audit trail.
const HistoryFieldStatus = "status"

// HistoryInitialValue is the old value recorded on creation.
const HistoryInitialValue = "N/A"

// InteractionHistory is an immutable audit trail entry.
// UserID is nil once the acting user has been deleted.
type InteractionHistory struct {
	ID            int64
	InteractionID int64
	UserID        *int64
	Username      string
	Timestamp     time.Time
	FieldChanged  string
	OldValue      string
	NewValue      string
}
