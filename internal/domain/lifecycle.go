package domain

type TicketStatus string

const (
	StatusAvailable TicketStatus = "available"
	StatusReserved  TicketStatus = "reserved"
	StatusSold      TicketStatus = "sold"
	StatusUsed      TicketStatus = "used"
	StatusCancelled TicketStatus = "cancelled"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold, StatusUsed, StatusCancelled:
		return true
	}
	return false
}

// Reason names why a transition was applied. Cancel and refund both return a
// sold unit to available; the reason is what keeps them apart in the history.
type Reason string

const (
	ReasonReserve  Reason = "reserve"
	ReasonRelease  Reason = "release"
	ReasonExpire   Reason = "expire"
	ReasonPurchase Reason = "purchase"
	ReasonCheckIn  Reason = "check_in"
	ReasonCancel   Reason = "cancel"
	ReasonRefund   Reason = "refund"
	ReasonWithdraw Reason = "withdraw"
)

var transitions = map[TicketStatus][]TicketStatus{
	StatusAvailable: {StatusReserved, StatusSold, StatusCancelled},
	StatusReserved:  {StatusSold, StatusAvailable},
	StatusSold:      {StatusUsed, StatusAvailable},
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
// Used and cancelled units have no outgoing edges.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Edge returns the source and target status of a transition reason.
func (r Reason) Edge() (from, to TicketStatus) {
	switch r {
	case ReasonReserve:
		return StatusAvailable, StatusReserved
	case ReasonRelease, ReasonExpire:
		return StatusReserved, StatusAvailable
	case ReasonCheckIn:
		return StatusSold, StatusUsed
	case ReasonCancel, ReasonRefund:
		return StatusSold, StatusAvailable
	case ReasonWithdraw:
		return StatusAvailable, StatusCancelled
	}
	return StatusAvailable, StatusSold
}

// Owned reports whether tickets in status s must carry an attendee and token.
func (s TicketStatus) Owned() bool {
	return s == StatusSold || s == StatusUsed
}

// SeatStatusFor derives the seat-map status of a seated ticket.
func SeatStatusFor(ticket TicketStatus, seat SeatStatus) SeatStatus {
	if seat == SeatUnavailable {
		return SeatUnavailable
	}
	switch ticket {
	case StatusReserved:
		return SeatSelected
	case StatusSold, StatusUsed:
		return SeatSoldOut
	case StatusCancelled:
		return SeatUnavailable
	}
	return SeatAvailable
}

// TransitionConflict builds the error returned when a unit is not in the
// status a transition requires.
func TransitionConflict(id string, r Reason, actual TicketStatus) error {
	from, to := r.Edge()
	if actual == "" {
		return Conflictf("ticket %s is not %s", id, from)
	}
	return Conflictf("ticket %s cannot move to %s: status is %s, want %s", id, to, actual, from)
}
