package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

type venueResponse struct {
	ID          uuid.UUID        `json:"id"`
	AdminID     uuid.UUID        `json:"admin_id"`
	Name        string           `json:"name"`
	Location    string           `json:"location"`
	Capacity    int              `json:"capacity"`
	HasSections bool             `json:"has_sections"`
	Sections    []domain.Section `json:"sections"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func newVenueResponse(v domain.Venue) venueResponse {
	sections := v.Sections
	if sections == nil {
		sections = []domain.Section{}
	}
	return venueResponse{
		ID:          v.ID,
		AdminID:     v.AdminID,
		Name:        v.Name,
		Location:    v.Location,
		Capacity:    v.Capacity,
		HasSections: v.HasSections,
		Sections:    sections,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type seatResponse struct {
	ID      uuid.UUID         `json:"id"`
	Section string            `json:"section"`
	Number  int               `json:"number"`
	Label   string            `json:"label"`
	Status  domain.SeatStatus `json:"status"`
}

func newSeatResponses(seats []domain.Seat) []seatResponse {
	out := make([]seatResponse, len(seats))
	for i, s := range seats {
		out[i] = seatResponse{ID: s.ID, Section: s.SectionName, Number: s.Number, Label: s.Label, Status: s.Status}
	}
	return out
}

type eventResponse struct {
	ID           uuid.UUID                 `json:"id"`
	AdminID      uuid.UUID                 `json:"admin_id"`
	VenueID      uuid.UUID                 `json:"venue_id"`
	Title        string                    `json:"title"`
	Description  string                    `json:"description"`
	StartsAt     time.Time                 `json:"starts_at"`
	EndsAt       time.Time                 `json:"ends_at"`
	Lineup       []string                  `json:"lineup"`
	Images       []string                  `json:"images"`
	TicketTypes  []domain.TicketType       `json:"ticket_types"`
	Availability []domain.TypeAvailability `json:"availability,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

func newEventResponse(e domain.Event, avail []domain.TypeAvailability) eventResponse {
	return eventResponse{
		ID:           e.ID,
		AdminID:      e.AdminID,
		VenueID:      e.VenueID,
		Title:        e.Title,
		Description:  e.Description,
		StartsAt:     e.StartsAt,
		EndsAt:       e.EndsAt,
		Lineup:       nonNil(e.Lineup),
		Images:       nonNil(e.Images),
		TicketTypes:  e.TicketTypes,
		Availability: avail,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// eventSummary is one entry of the public event listing.
type eventSummary struct {
	ID          uuid.UUID                    `json:"id"`
	VenueID     uuid.UUID                    `json:"venue_id"`
	VenueName   string                       `json:"venue_name,omitempty"`
	Location    string                       `json:"location,omitempty"`
	Title       string                       `json:"title"`
	StartsAt    time.Time                    `json:"starts_at"`
	EndsAt      time.Time                    `json:"ends_at"`
	Images      []string                     `json:"images"`
	TicketTypes []mongoadapter.TicketTypeDoc `json:"ticket_types"`
}

func summaryFromDoc(doc mongoadapter.EventDoc) eventSummary {
	return eventSummary{
		ID:          docID(doc.ID),
		VenueID:     docID(doc.VenueID),
		VenueName:   doc.VenueName,
		Location:    doc.VenueLocation,
		Title:       doc.Title,
		StartsAt:    doc.StartsAt,
		EndsAt:      doc.EndsAt,
		Images:      nonNil(doc.Images),
		TicketTypes: doc.TicketTypes,
	}
}

func summaryFromEvent(e domain.Event) eventSummary {
	types := make([]mongoadapter.TicketTypeDoc, len(e.TicketTypes))
	for i, t := range e.TicketTypes {
		types[i] = mongoadapter.TicketTypeDoc{Type: t.Type, Price: t.Price.StringFixed(2), Quantity: t.Quantity}
	}
	return eventSummary{
		ID:          e.ID,
		VenueID:     e.VenueID,
		Title:       e.Title,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		Images:      nonNil(e.Images),
		TicketTypes: types,
	}
}

type ticketResponse struct {
	ID            uuid.UUID           `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventTitle    string              `json:"event_title,omitempty"`
	VenueID       uuid.UUID           `json:"venue_id"`
	TicketType    string              `json:"ticket_type"`
	Section       *string             `json:"section,omitempty"`
	Seat          *string             `json:"seat,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	Status        domain.TicketStatus `json:"status"`
	AttendeeID    *uuid.UUID          `json:"attendee_id,omitempty"`
	QRToken       *string             `json:"qr_token,omitempty"`
	PurchasedAt   *time.Time          `json:"purchased_at,omitempty"`
	HoldID        *uuid.UUID          `json:"hold_id,omitempty"`
	ReservedUntil *time.Time          `json:"reserved_until,omitempty"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:            t.ID,
		EventID:       t.EventID,
		VenueID:       t.VenueID,
		TicketType:    t.TicketType,
		Section:       t.SectionName,
		Seat:          t.SeatNumber,
		Price:         t.Price,
		Status:        t.Status,
		AttendeeID:    t.AttendeeID,
		QRToken:       t.QRToken,
		PurchasedAt:   t.PurchasedAt,
		HoldID:        t.HoldID,
		ReservedUntil: t.ReservedUntil,
	}
}

func newTicketRowResponse(row crdb.TicketRow) ticketResponse {
	resp := newTicketResponse(row.Ticket)
	resp.EventTitle = row.EventTitle
	return resp
}

func newTicketRowResponses(rows []crdb.TicketRow) []ticketResponse {
	out := make([]ticketResponse, len(rows))
	for i, row := range rows {
		out[i] = newTicketRowResponse(row)
	}
	return out
}

type holdResponse struct {
	HoldID    uuid.UUID   `json:"hold_id"`
	EventID   uuid.UUID   `json:"event_id"`
	TicketIDs []uuid.UUID `json:"ticket_ids"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type historyResponse struct {
	From       domain.TicketStatus `json:"from"`
	To         domain.TicketStatus `json:"to"`
	Reason     domain.Reason       `json:"reason"`
	ActorID    *uuid.UUID          `json:"actor_id,omitempty"`
	AttendeeID *uuid.UUID          `json:"attendee_id,omitempty"`
	At         time.Time           `json:"at"`
}

func newHistoryResponses(entries []domain.HistoryEntry) []historyResponse {
	out := make([]historyResponse, len(entries))
	for i, h := range entries {
		out[i] = historyResponse{From: h.From, To: h.To, Reason: h.Reason, ActorID: h.ActorID, AttendeeID: h.AttendeeID, At: h.At}
	}
	return out
}

type validationResponse struct {
	Valid  bool           `json:"valid"`
	Ticket ticketResponse `json:"ticket"`
}

func newValidationResponse(v service.QRValidation) validationResponse {
	t := newTicketRowResponse(v.Ticket)
	t.QRToken = nil
	return validationResponse{Valid: true, Ticket: t}
}

func docID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
