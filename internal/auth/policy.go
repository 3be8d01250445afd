package auth

import (
	"github.com/spec-kit/interaction-tracker/internal/domain"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// Denial messages shown to the actor.
const (
	MsgSupervisorOnly      = "access restricted to supervisors"
	MsgNotInteractionOwner = "you do not have permission to access this interaction"
	MsgResolvedLocked      = "resolved interactions can no longer be edited"
	MsgCannotDeleteSelf    = "you cannot delete your own account"
	MsgCannotDemoteSelf    = "you cannot remove your own supervisor role"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Message string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(message string) Decision { return Decision{Message: message} }

// Err converts a denial into a soft DomainError; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.NewDenied(d.Message)
}

// Policy evaluates role and ownership rules for interactions and users.
type Policy struct {
	lockResolved bool
}

// NewPolicy builds a policy. lockResolved blocks non-supervisor edits of
// resolved interactions.
func NewPolicy(lockResolved bool) Policy {
	return Policy{lockResolved: lockResolved}
}

// RequireSupervisor gates supervisor-only views and user management.
func (p Policy) RequireSupervisor(actor domain.Actor) Decision {
	if !actor.IsSupervisor {
		return deny(MsgSupervisorOnly)
	}
	return allow()
}

// OwnerScope returns the owner filter to apply to listings; nil means all rows.
func (p Policy) OwnerScope(actor domain.Actor) *int64 {
	if actor.IsSupervisor {
		return nil
	}
	id := actor.ID
	return &id
}

// CanViewInteraction allows supervisors and the owner.
func (p Policy) CanViewInteraction(actor domain.Actor, interaction *domain.Interaction) Decision {
	if actor.IsSupervisor || actor.ID == interaction.UserID {
		return allow()
	}
	return deny(MsgNotInteractionOwner)
}

// CanViewHistory reports whether the audit trail is shown to actor.
func (p Policy) CanViewHistory(actor domain.Actor) bool {
	return actor.IsSupervisor
}

// CanEditInteraction allows supervisors and the owner, unless the
// interaction is resolved and the resolved lock is on.
func (p Policy) CanEditInteraction(actor domain.Actor, interaction *domain.Interaction) Decision {
	if actor.IsSupervisor {
		return allow()
	}
	if p.lockResolved && interaction.Status == domain.StatusResolved {
		return deny(MsgResolvedLocked)
	}
	if actor.ID != interaction.UserID {
		return deny(MsgNotInteractionOwner)
	}
	return allow()
}

// CanDeleteInteraction allows supervisors and the owner.
func (p Policy) CanDeleteInteraction(actor domain.Actor, interaction *domain.Interaction) Decision {
	return p.CanViewInteraction(actor, interaction)
}

// CanDeleteUser allows supervisors to delete any account but their own.
func (p Policy) CanDeleteUser(actor domain.Actor, target *domain.User) Decision {
	if d := p.RequireSupervisor(actor); !d.Allowed {
		return d
	}
	if actor.ID == target.ID {
		return deny(MsgCannotDeleteSelf)
	}
	return allow()
}

// CanToggleSupervisor allows supervisors to flip the role of any account,
// except removing their own supervisor flag.
func (p Policy) CanToggleSupervisor(actor domain.Actor, target *domain.User) Decision {
	if d := p.RequireSupervisor(actor); !d.Allowed {
		return d
	}
	if actor.ID == target.ID && target.IsSupervisor {
		return deny(MsgCannotDemoteSelf)
	}
	return allow()
}
