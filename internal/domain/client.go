package domain

import "time"

// Client is a customer record. Phone is unique across the registry.
type Client struct {
	ID        int64
	Name      string
	Phone     string
	CreatedAt time.Time
}
