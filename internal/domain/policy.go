package domain

import "github.com/google/uuid"

type Action string

const (
	ActionCreateVenue    Action = "venue:create"
	ActionManageVenue    Action = "venue:manage"
	ActionCreateEvent    Action = "event:create"
	ActionManageEvent    Action = "event:manage"
	ActionBuyTicket      Action = "ticket:buy"
	ActionCancelTicket   Action = "ticket:cancel"
	ActionRefundTicket   Action = "ticket:refund"
	ActionCheckInTicket  Action = "ticket:check_in"
	ActionViewTicket     Action = "ticket:view"
	ActionWithdrawTicket Action = "ticket:withdraw"
	ActionProvisionAdmin Action = "admin:provision"
)

// Resource carries the ownership facts authorization decisions depend on.
// OwnerID is the admin that owns the venue or event; AttendeeID is set for
// tickets that have been sold.
type Resource struct {
	OwnerID    uuid.UUID
	AttendeeID *uuid.UUID
}

func (r Resource) ownedBy(a Actor) bool {
	return r.OwnerID != uuid.Nil && r.OwnerID == a.UserID
}

func (r Resource) heldBy(a Actor) bool {
	return r.AttendeeID != nil && *r.AttendeeID == a.UserID
}

// Can is the single authorization check of the service.
func Can(a Actor, action Action, r Resource) bool {
	if a.UserID == uuid.Nil {
		return false
	}
	if a.Role == RoleSuperAdmin {
		return true
	}
	switch action {
	case ActionCreateVenue, ActionCreateEvent:
		return a.Role == RoleAdmin
	case ActionManageVenue, ActionManageEvent, ActionCheckInTicket, ActionRefundTicket, ActionWithdrawTicket:
		return a.Role == RoleAdmin && r.ownedBy(a)
	case ActionBuyTicket:
		return true
	case ActionCancelTicket, ActionViewTicket:
		return r.heldBy(a) || (a.Role == RoleAdmin && r.ownedBy(a))
	}
	return false
}

// Authorize returns ErrForbidden when Can denies the action.
func Authorize(a Actor, action Action, r Resource) error {
	if !Can(a, action, r) {
		return Forbiddenf("%s is not allowed to %s", a.UserID, action)
	}
	return nil
}
