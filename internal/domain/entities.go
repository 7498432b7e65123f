package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleAttendee   Role = "attendee"
)

// Actor is the authenticated caller as reported by the identity provider.
type Actor struct {
	UserID uuid.UUID
	Role   Role
	Email  string
}

type Section struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

type Venue struct {
	ID          uuid.UUID
	AdminID     uuid.UUID
	Name        string
	Location    string
	Capacity    int
	HasSections bool
	Sections    []Section
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Section returns the section with the given name.
func (v Venue) Section(name string) (Section, bool) {
	for _, s := range v.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

type SeatStatus string

const (
	SeatAvailable   SeatStatus = "Available"
	SeatSelected    SeatStatus = "Selected"
	SeatSoldOut     SeatStatus = "Sold Out"
	SeatUnavailable SeatStatus = "Unavailable"
)

// Seat is a physical slot in a venue section. Only Available and Unavailable
// are stored; Selected and Sold Out are derived per event from ticket state.
type Seat struct {
	ID          uuid.UUID
	VenueID     uuid.UUID
	SectionName string
	Number      int
	Label       string
	Status      SeatStatus
}

type TicketType struct {
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Available *int            `json:"available,omitempty"`
}

// OnSale is the declared number of units offered for sale, after clamping.
func (t TicketType) OnSale() int {
	if t.Available == nil {
		return t.Quantity
	}
	return *t.Available
}

type Event struct {
	ID          uuid.UUID
	AdminID     uuid.UUID
	VenueID     uuid.UUID
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Lineup      []string
	Images      []string
	TicketTypes []TicketType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ended reports whether the event is over at now.
func (e Event) Ended(now time.Time) bool {
	return !now.Before(e.EndsAt)
}

type Ticket struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	VenueID       uuid.UUID
	TicketType    string
	SectionName   *string
	SeatNumber    *string
	SeatNo        int
	Price         decimal.Decimal
	Status        TicketStatus
	AttendeeID    *uuid.UUID
	AttendeeEmail *string
	QRToken       *string
	PurchasedAt   *time.Time
	HoldID        *uuid.UUID
	HolderID      *uuid.UUID
	ReservedUntil *time.Time
	UpdatedAt     time.Time
}

// TypeAvailability is the derived per-type inventory summary of an event.
type TypeAvailability struct {
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Total     int             `json:"total"`
	Available int             `json:"available"`
	Reserved  int             `json:"reserved"`
	Sold      int             `json:"sold"`
	Used      int             `json:"used"`
	Withdrawn int             `json:"withdrawn"`
}

// SeatView is one seat of an event seat map.
type SeatView struct {
	TicketID    uuid.UUID       `json:"ticket_id"`
	SectionName string          `json:"section"`
	Label       string          `json:"seat"`
	Price       decimal.Decimal `json:"price"`
	Status      SeatStatus      `json:"status"`
}

type HoldStatus string

const (
	HoldActive    HoldStatus = "ACTIVE"
	HoldReleased  HoldStatus = "RELEASED"
	HoldExpired   HoldStatus = "EXPIRED"
	HoldConverted HoldStatus = "CONVERTED"
)

type Hold struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserID    uuid.UUID
	TicketIDs []uuid.UUID
	ExpiresAt time.Time
}

// HistoryEntry records one applied ticket transition.
type HistoryEntry struct {
	TicketID   uuid.UUID
	From       TicketStatus
	To         TicketStatus
	Reason     Reason
	ActorID    *uuid.UUID
	AttendeeID *uuid.UUID
	At         time.Time
}
