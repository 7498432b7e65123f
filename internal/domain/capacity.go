package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCapacity bounds a venue and each of its sections. Inventory for an event
// is built and written in one batch, so it must fit comfortably in memory.
const MaxCapacity = 100_000

// Prices are stored as DECIMAL(12, 2).
var (
	maxPrice   = decimal.New(1, 10)
	priceScale = int32(2)
)

// ValidateVenue checks a venue declaration before it is stored.
func ValidateVenue(v Venue) error {
	if strings.TrimSpace(v.Name) == "" {
		return Invalid("name", "must not be empty")
	}
	if v.Capacity <= 0 {
		return Invalid("capacity", "must be a positive integer")
	}
	if v.Capacity > MaxCapacity {
		return Invalid("capacity", "must not exceed %d", MaxCapacity)
	}
	if !v.HasSections {
		if len(v.Sections) > 0 {
			return Invalid("sections", "must be empty when hasSections is false")
		}
		return nil
	}
	if len(v.Sections) == 0 {
		return Invalid("sections", "at least one section is required when hasSections is true")
	}

	seen := make(map[string]struct{}, len(v.Sections))
	sum := 0
	for i, s := range v.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return Invalid("sections", "section %d has an empty name", i)
		}
		if _, dup := seen[s.Name]; dup {
			return Invalid("sections", "duplicate section name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Capacity <= 0 {
			return Invalid("sections", "section %q capacity must be positive", s.Name)
		}
		if s.Capacity > MaxCapacity {
			return Invalid("sections", "section %q capacity must not exceed %d", s.Name, MaxCapacity)
		}
		sum += s.Capacity
	}
	if sum != v.Capacity {
		return Invalid("sections", "section capacities sum to %d, venue capacity is %d", sum, v.Capacity)
	}
	return nil
}

// CheckVenueIntegrity verifies a stored venue still satisfies its invariants.
// A mismatch here is never user input, so it is reported as an integrity error.
func CheckVenueIntegrity(v Venue) error {
	if !v.HasSections {
		return nil
	}
	sum := 0
	for _, s := range v.Sections {
		sum += s.Capacity
	}
	if sum != v.Capacity {
		return Integrityf("venue %s: section capacities sum to %d, capacity is %d", v.ID, sum, v.Capacity)
	}
	return nil
}

// ValidateTicketTypes applies the capacity rules of a venue to a ticket-type
// declaration. Rules run in order and the first failure is returned. On success
// it returns a copy with every Available clamped to [0, Quantity].
func ValidateTicketTypes(v Venue, types []TicketType) ([]TicketType, error) {
	if len(types) == 0 {
		return nil, Invalid("tickets", "at least one ticket type is required")
	}
	for i, t := range types {
		if strings.TrimSpace(t.Type) == "" {
			return nil, Invalid("tickets", "entry %d has an empty type", i)
		}
		if t.Price.IsNegative() {
			return nil, Invalid("tickets", "price of %q must not be negative", t.Type)
		}
		if t.Price.GreaterThanOrEqual(maxPrice) {
			return nil, Invalid("tickets", "price of %q must be below %s", t.Type, maxPrice)
		}
		if !t.Price.Equal(t.Price.Truncate(priceScale)) {
			return nil, Invalid("tickets", "price of %q has more than %d decimal places", t.Type, priceScale)
		}
		if t.Quantity < 0 {
			return nil, Invalid("tickets", "quantity of %q must not be negative", t.Type)
		}
	}

	if v.HasSections {
		seen := make(map[string]struct{}, len(types))
		for _, t := range types {
			if _, dup := seen[t.Type]; dup {
				return nil, Invalid("tickets", "duplicate ticket type %q", t.Type)
			}
			seen[t.Type] = struct{}{}
			s, ok := v.Section(t.Type)
			if !ok {
				return nil, Invalid("tickets", "ticket type %q does not match any section", t.Type)
			}
			if t.Quantity > s.Capacity {
				return nil, Invalid("tickets", "quantity %d of %q exceeds section capacity %d", t.Quantity, t.Type, s.Capacity)
			}
		}
		for _, s := range v.Sections {
			if _, ok := seen[s.Name]; !ok {
				return nil, Invalid("tickets", "section %q has no ticket type", s.Name)
			}
		}
	} else {
		total := 0
		for _, t := range types {
			total += t.Quantity
		}
		if total > v.Capacity {
			return nil, Invalid("tickets", "total quantity %d exceeds venue capacity %d", total, v.Capacity)
		}
	}

	out := make([]TicketType, len(types))
	for i, t := range types {
		avail := t.Quantity
		if t.Available != nil {
			avail = clamp(*t.Available, 0, t.Quantity)
		}
		t.Available = &avail
		out[i] = t
	}
	return out, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
