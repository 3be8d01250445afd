package domain

// Actor is the authenticated caller a policy decision is made for.
type Actor struct {
	ID           int64
	Username     string
	IsSupervisor bool
}
