package domain

import "time"

// User is an account that logs interactions. Supervisors get full read access
// and user management rights.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsSupervisor bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity used for policy checks.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Username: u.Username, IsSupervisor: u.IsSupervisor}
}
