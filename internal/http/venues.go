package http

import (
	"net/http"

	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

type venueRequest struct {
	Name        string           `json:"name"`
	Location    string           `json:"location"`
	Capacity    int              `json:"capacity"`
	HasSections bool             `json:"has_sections"`
	Sections    []domain.Section `json:"sections"`
}

func (req venueRequest) input() service.VenueInput {
	return service.VenueInput{
		Name:        req.Name,
		Location:    req.Location,
		Capacity:    req.Capacity,
		HasSections: req.HasSections,
		Sections:    req.Sections,
	}
}

func (h *Handlers) CreateVenue(w http.ResponseWriter, r *http.Request) {
	var req venueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.CreateVenue(r.Context(), actor(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVenueResponse(v))
}

func (h *Handlers) GetVenue(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "venueID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.GetVenue(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVenueResponse(v))
}

// ListVenues lists all venues, or with ?mine=true only the caller's.
func (h *Handlers) ListVenues(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mine := r.URL.Query().Get("mine") == "true"
	a := actor(r)
	if mine && a.Role == "" {
		writeError(w, r, badRequest("mine requires authentication"))
		return
	}
	venues, err := h.svc.ListVenues(r.Context(), a, mine, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]venueResponse, len(venues))
	for i, v := range venues {
		out[i] = newVenueResponse(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) UpdateVenue(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "venueID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req venueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.UpdateVenue(r.Context(), actor(r), id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVenueResponse(v))
}

func (h *Handlers) DeleteVenue(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "venueID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteVenue(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) VenueSeats(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "venueID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	seats, err := h.svc.VenueSeats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSeatResponses(seats))
}

type seatStatusRequest struct {
	Seats  []string          `json:"seats"`
	Status domain.SeatStatus `json:"status"`
}

// SetSeatStatus takes seats out of service or returns them to it.
func (h *Handlers) SetSeatStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "venueID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req seatStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.SetSeatStatus(r.Context(), actor(r), id, req.Seats, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
