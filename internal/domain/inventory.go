package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SeatLabel is the deterministic label of seat n (1-indexed) in a section.
func SeatLabel(section string, n int) string {
	return section + "-" + strconv.Itoa(n)
}

// SeatLabels returns the labels of the first count seats of a section, in order.
func SeatLabels(section string, count int) []string {
	labels := make([]string, count)
	for i := range labels {
		labels[i] = SeatLabel(section, i+1)
	}
	return labels
}

// SeatsFor materializes the seat arena of a sectioned venue.
func SeatsFor(v Venue) []Seat {
	if !v.HasSections {
		return nil
	}
	var seats []Seat
	for _, s := range v.Sections {
		for n := 1; n <= s.Capacity; n++ {
			seats = append(seats, Seat{
				ID:          uuid.New(),
				VenueID:     v.ID,
				SectionName: s.Name,
				Number:      n,
				Label:       SeatLabel(s.Name, n),
				Status:      SeatAvailable,
			})
		}
	}
	return seats
}

// GenerateInventory expands the validated ticket types of an event into one
// Ticket per sellable unit. Sectioned venues get one seated ticket per seat up
// to min(quantity, section capacity); other venues get quantity unseated
// tickets per type, capped at the capacity left after earlier types.
//
// Units beyond a type's declared availability are generated withdrawn.
// The second result lists sections that had no matching ticket type.
func GenerateInventory(e Event, v Venue, types []TicketType, now time.Time) ([]Ticket, []string) {
	var (
		tickets  []Ticket
		orphaned []string
	)
	newTicket := func(t TicketType, idx int) Ticket {
		status := StatusAvailable
		if idx >= t.OnSale() {
			status = StatusCancelled
		}
		return Ticket{
			ID:         uuid.New(),
			EventID:    e.ID,
			VenueID:    v.ID,
			TicketType: t.Type,
			Price:      t.Price,
			Status:     status,
			UpdatedAt:  now,
		}
	}

	if v.HasSections {
		byName := make(map[string]TicketType, len(types))
		for _, t := range types {
			byName[t.Type] = t
		}
		for _, s := range v.Sections {
			t, ok := byName[s.Name]
			if !ok {
				orphaned = append(orphaned, s.Name)
				continue
			}
			count := min(t.Quantity, s.Capacity)
			for i := 0; i < count; i++ {
				tk := newTicket(t, i)
				section := s.Name
				label := SeatLabel(s.Name, i+1)
				tk.SectionName = &section
				tk.SeatNumber = &label
				tk.SeatNo = i + 1
				tickets = append(tickets, tk)
			}
		}
		return tickets, orphaned
	}

	remaining := v.Capacity
	for _, t := range types {
		count := min(t.Quantity, remaining)
		for i := 0; i < count; i++ {
			tk := newTicket(t, i)
			tk.SeatNo = i + 1
			tickets = append(tickets, tk)
		}
		remaining -= count
	}
	return tickets, orphaned
}
