package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

type ticketAction func(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) (domain.Ticket, error)

// transition adapts a single-ticket lifecycle operation to a handler.
func (h *Handlers) transition(op ticketAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "ticketID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := op(r.Context(), actor(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketResponse(t))
	}
}

func (h *Handlers) Book(w http.ResponseWriter, r *http.Request) { h.transition(h.svc.Purchase)(w, r) }
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) { h.transition(h.svc.Cancel)(w, r) }
func (h *Handlers) Refund(w http.ResponseWriter, r *http.Request) { h.transition(h.svc.Refund)(w, r) }
func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) { h.transition(h.svc.Withdraw)(w, r) }
func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) { h.transition(h.svc.CheckIn)(w, r) }

type purchaseRequest struct {
	Type string `json:"type"`
}

// PurchaseByType sells the first available unit of a ticket type.
func (h *Handlers) PurchaseByType(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Type == "" {
		writeError(w, r, domain.Invalid("type", "must not be empty"))
		return
	}
	t, err := h.svc.PurchaseByType(r.Context(), actor(r), eventID, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketResponse(t))
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *Handlers) CheckInToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.CheckInToken(r.Context(), actor(r), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketResponse(t))
}

// ValidateQR checks a presented token without admitting the holder.
func (h *Handlers) ValidateQR(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.ValidateQR(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newValidationResponse(v))
}

func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "ticketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.svc.GetTicket(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketRowResponse(row))
}

func (h *Handlers) QRCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "ticketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	png, err := h.svc.QRCode(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handlers) TicketHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "ticketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.svc.TicketHistory(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryResponses(entries))
}

func (h *Handlers) MyTickets(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.MyTickets(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketRowResponses(rows))
}

type selectionRequest struct {
	EventID   uuid.UUID   `json:"event_id"`
	Seats     []string    `json:"seats"`
	TicketIDs []uuid.UUID `json:"ticket_ids"`
}

func (req selectionRequest) selection() domain.Selection {
	return domain.Selection{Seats: req.Seats, TicketIDs: req.TicketIDs}
}

func decodeSelection(w http.ResponseWriter, r *http.Request) (selectionRequest, error) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if req.EventID == uuid.Nil {
		return req, domain.Invalid("event_id", "is required")
	}
	return req, nil
}

// Reserve places a hold on every named seat or ticket, or on none.
func (h *Handlers) Reserve(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSelection(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hold, err := h.svc.Reserve(r.Context(), actor(r), req.EventID, req.selection())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, holdResponse{HoldID: hold.ID, EventID: hold.EventID, TicketIDs: hold.TicketIDs, ExpiresAt: hold.ExpiresAt})
}

type releaseResponse struct {
	Released []uuid.UUID `json:"released"`
}

func (h *Handlers) Release(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSelection(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	released, err := h.svc.Release(r.Context(), actor(r), req.EventID, req.selection())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if released == nil {
		released = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, releaseResponse{Released: released})
}
