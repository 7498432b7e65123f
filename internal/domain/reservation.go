package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxUnitsPerHold bounds one reservation request.
const MaxUnitsPerHold = 20

func NewHold(eventID uuid.UUID, userID uuid.UUID, now time.Time, ttl time.Duration) Hold {
	return Hold{
		ID:        uuid.New(),
		EventID:   eventID,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
	}
}

// Selection names the units a reservation applies to: either seat labels of a
// seated event or explicit ticket ids. Exactly one of the two must be set.
type Selection struct {
	Seats     []string
	TicketIDs []uuid.UUID
}

func (s Selection) Len() int {
	return len(s.Seats) + len(s.TicketIDs)
}

// Normalize validates the selection and removes duplicates, keeping order.
func (s Selection) Normalize() (Selection, error) {
	if len(s.Seats) > 0 && len(s.TicketIDs) > 0 {
		return Selection{}, Invalid("seats", "give either seat labels or ticket ids, not both")
	}
	if s.Len() == 0 {
		return Selection{}, Invalid("seats", "at least one seat or ticket is required")
	}
	if s.Len() > MaxUnitsPerHold {
		return Selection{}, Invalid("seats", "at most %d units per request", MaxUnitsPerHold)
	}
	var out Selection
	seenSeat := make(map[string]struct{})
	for _, label := range s.Seats {
		if label == "" {
			return Selection{}, Invalid("seats", "empty seat label")
		}
		if _, ok := seenSeat[label]; ok {
			continue
		}
		seenSeat[label] = struct{}{}
		out.Seats = append(out.Seats, label)
	}
	seenID := make(map[uuid.UUID]struct{})
	for _, id := range s.TicketIDs {
		if id == uuid.Nil {
			return Selection{}, Invalid("ticket_ids", "empty ticket id")
		}
		if _, ok := seenID[id]; ok {
			continue
		}
		seenID[id] = struct{}{}
		out.TicketIDs = append(out.TicketIDs, id)
	}
	return out, nil
}
