// Package messages defines the payloads the service publishes through the
// transactional outbox, keyed by routing key on the ticketing.events exchange.
package messages

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

const (
	Exchange = "ticketing.events"

	EventCreated = "event.created"
	EventUpdated = "event.updated"
	EventDeleted = "event.deleted"

	TicketSold      = "ticket.sold"
	TicketCancelled = "ticket.cancelled"
	TicketRefunded  = "ticket.refunded"
	TicketCheckedIn = "ticket.checked_in"
	TicketWithdrawn = "ticket.withdrawn"

	HoldCreated  = "hold.created"
	HoldReleased = "hold.released"
	HoldExpired  = "hold.expired"
)

type Header struct {
	ID          uuid.UUID  `json:"id"`
	PublishedAt time.Time  `json:"published_at"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
}

func NewHeader(actor *uuid.UUID) Header {
	return Header{ID: uuid.New(), PublishedAt: time.Now().UTC(), ActorID: actor}
}

type TicketType struct {
	Type     string          `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type EventChanged struct {
	Header           Header       `json:"header"`
	EventID          uuid.UUID    `json:"event_id"`
	AdminID          uuid.UUID    `json:"admin_id"`
	VenueID          uuid.UUID    `json:"venue_id"`
	VenueName        string       `json:"venue_name"`
	VenueLocation    string       `json:"venue_location"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	StartsAt         time.Time    `json:"starts_at"`
	EndsAt           time.Time    `json:"ends_at"`
	Lineup           []string     `json:"lineup"`
	Images           []string     `json:"images"`
	TicketTypes      []TicketType `json:"ticket_types"`
	TicketsGenerated int          `json:"tickets_generated"`
}

func NewEventChanged(actor *uuid.UUID, e domain.Event, v domain.Venue, generated int) EventChanged {
	types := make([]TicketType, len(e.TicketTypes))
	for i, t := range e.TicketTypes {
		types[i] = TicketType{Type: t.Type, Price: t.Price, Quantity: t.Quantity}
	}
	return EventChanged{
		Header:           NewHeader(actor),
		EventID:          e.ID,
		AdminID:          e.AdminID,
		VenueID:          v.ID,
		VenueName:        v.Name,
		VenueLocation:    v.Location,
		Title:            e.Title,
		Description:      e.Description,
		StartsAt:         e.StartsAt,
		EndsAt:           e.EndsAt,
		Lineup:           e.Lineup,
		Images:           e.Images,
		TicketTypes:      types,
		TicketsGenerated: generated,
	}
}

type EventDeletedPayload struct {
	Header  Header    `json:"header"`
	EventID uuid.UUID `json:"event_id"`
}

// TicketChanged is published for every applied ticket transition other than
// reservations, which are reported per hold.
type TicketChanged struct {
	Header        Header              `json:"header"`
	TicketID      uuid.UUID           `json:"ticket_id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventTitle    string              `json:"event_title,omitempty"`
	TicketType    string              `json:"ticket_type"`
	Seat          *string             `json:"seat,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	From          domain.TicketStatus `json:"from"`
	To            domain.TicketStatus `json:"to"`
	Reason        domain.Reason       `json:"reason"`
	AttendeeID    *uuid.UUID          `json:"attendee_id,omitempty"`
	AttendeeEmail string              `json:"attendee_email,omitempty"`
}

func NewTicketChanged(actor domain.Actor, t domain.Ticket, from domain.TicketStatus, reason domain.Reason, attendee *uuid.UUID, email string) TicketChanged {
	_, to := reason.Edge()
	return TicketChanged{
		Header:        NewHeader(&actor.UserID),
		TicketID:      t.ID,
		EventID:       t.EventID,
		TicketType:    t.TicketType,
		Seat:          t.SeatNumber,
		Price:         t.Price,
		From:          from,
		To:            to,
		Reason:        reason,
		AttendeeID:    attendee,
		AttendeeEmail: email,
	}
}

// RoutingKey maps a transition reason to the key its message is published on.
func RoutingKey(r domain.Reason) string {
	switch r {
	case domain.ReasonPurchase:
		return TicketSold
	case domain.ReasonCancel:
		return TicketCancelled
	case domain.ReasonRefund:
		return TicketRefunded
	case domain.ReasonCheckIn:
		return TicketCheckedIn
	case domain.ReasonWithdraw:
		return TicketWithdrawn
	case domain.ReasonRelease:
		return HoldReleased
	case domain.ReasonExpire:
		return HoldExpired
	}
	return HoldCreated
}

type HoldChanged struct {
	Header    Header      `json:"header"`
	HoldID    uuid.UUID   `json:"hold_id"`
	EventID   uuid.UUID   `json:"event_id"`
	UserID    uuid.UUID   `json:"user_id"`
	TicketIDs []uuid.UUID `json:"ticket_ids"`
	ExpiresAt time.Time   `json:"expires_at"`
}
