package http

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

type eventRequest struct {
	VenueID     uuid.UUID           `json:"venue_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	Lineup      []string            `json:"lineup"`
	Images      []string            `json:"images"`
	Tickets     []domain.TicketType `json:"tickets"`
}

func (req eventRequest) input() service.EventInput {
	return service.EventInput{
		VenueID:     req.VenueID,
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Lineup:      req.Lineup,
		Images:      req.Images,
		TicketTypes: req.Tickets,
	}
}

type createEventResponse struct {
	EventID          uuid.UUID `json:"event_id"`
	TicketsGenerated int       `json:"tickets_generated"`
}

// CreateEvent accepts either a JSON body or a multipart form whose "tickets"
// and "lineup" fields hold JSON arrays and whose "images" files are uploaded
// to object storage.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var (
		req     eventRequest
		uploads []service.Upload
		err     error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, uploads, err = parseEventForm(w, r)
	} else {
		err = decodeJSON(w, r, &req)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, generated, err := h.svc.CreateEvent(r.Context(), actor(r), req.input(), uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createEventResponse{EventID: e.ID, TicketsGenerated: generated})
}

func parseEventForm(w http.ResponseWriter, r *http.Request) (eventRequest, []service.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		return eventRequest{}, nil, badRequest("invalid multipart form: %v", err)
	}
	form := r.MultipartForm

	var req eventRequest
	var err error
	if req.VenueID, err = uuid.Parse(r.FormValue("venue_id")); err != nil {
		return eventRequest{}, nil, domain.Invalid("venue_id", "must be a uuid")
	}
	req.Title = r.FormValue("title")
	req.Description = r.FormValue("description")
	if req.StartsAt, err = time.Parse(time.RFC3339, r.FormValue("starts_at")); err != nil {
		return eventRequest{}, nil, domain.Invalid("starts_at", "must be an RFC 3339 time")
	}
	if req.EndsAt, err = time.Parse(time.RFC3339, r.FormValue("ends_at")); err != nil {
		return eventRequest{}, nil, domain.Invalid("ends_at", "must be an RFC 3339 time")
	}
	if err := formJSON(r, "tickets", &req.Tickets); err != nil {
		return eventRequest{}, nil, err
	}
	if err := formJSON(r, "lineup", &req.Lineup); err != nil {
		return eventRequest{}, nil, err
	}

	var uploads []service.Upload
	for _, fh := range form.File["images"] {
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return req, uploads, nil
}

func formJSON(r *http.Request, field string, v interface{}) error {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return domain.Invalid(field, "must be a JSON array: %v", err)
	}
	return nil
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(d.Event, d.Availability))
}

// ListEvents serves upcoming events from the catalog read model, falling back
// to the database when the catalog is not configured or fails.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.catalog != nil {
		docs, err := h.catalog.ListUpcoming(r.Context(), time.Now().UTC(), limit, offset)
		if err == nil {
			out := make([]eventSummary, len(docs))
			for i, doc := range docs {
				out[i] = summaryFromDoc(doc)
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
		requestLogger(r).WithError(err).Warn("catalog unavailable, listing from database")
	}

	events, err := h.svc.ListEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventSummary, len(events))
	for i, e := range events {
		out[i] = summaryFromEvent(e)
	}
	writeJSON(w, http.StatusOK, out)
}

type eventPatchRequest struct {
	VenueID     *uuid.UUID `json:"venue_id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Lineup      *[]string  `json:"lineup"`
	Images      *[]string  `json:"images"`
}

func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req eventPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.svc.UpdateEvent(r.Context(), actor(r), id, service.EventPatch(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(e, nil))
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteEvent(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SeatMap lists every seat of an event with its derived status.
func (h *Handlers) SeatMap(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	seats, err := h.svc.SeatMap(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seats)
}

func (h *Handlers) EventTickets(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var status *domain.TicketStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.TicketStatus(v)
		if !s.Valid() {
			writeError(w, r, domain.Invalid("status", "unknown ticket status %q", v))
			return
		}
		status = &s
	}
	rows, err := h.svc.EventTickets(r.Context(), actor(r), id, status, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketRowResponses(rows))
}
