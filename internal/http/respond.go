package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/idempotency"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 32 << 20
	defaultPageSize  = 20
	maxPageSize      = 100
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func badRequest(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errBadRequest)
}

// errorStatus maps an error to its HTTP status and response body.
func errorStatus(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var rejection *domain.QRRejection
	if errors.As(err, &rejection) {
		body.Kind, body.Reason = "rejected", string(rejection.Reason)
		switch rejection.Reason {
		case domain.QRNotFound:
			return http.StatusNotFound, body
		case domain.QRWrongStatus:
			return http.StatusConflict, body
		}
		return http.StatusUnprocessableEntity, body
	}
	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		body.Kind, body.Field = "validation", invalid.Field
		return http.StatusUnprocessableEntity, body
	}

	switch {
	case errors.Is(err, errBadRequest):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.Is(err, auth.ErrUnauthenticated):
		body.Kind = "unauthenticated"
		return http.StatusUnauthorized, body
	case errors.Is(err, idempotency.ErrInFlight):
		body.Kind = "conflict"
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrValidation):
		body.Kind = "validation"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrForbidden):
		body.Kind = "forbidden"
		return http.StatusForbidden, body
	case errors.Is(err, domain.ErrNotFound):
		body.Kind = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSerializationFailure):
		body.Kind = "conflict"
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrIntegrity):
		body.Kind = "integrity"
		return http.StatusInternalServerError, body
	}
	body.Kind, body.Error = "internal", "internal error"
	return http.StatusInternalServerError, body
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		requestLogger(r).WithError(err).Error("request failed")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(r *http.Request) observability.Logger {
	return observability.LoggerFromContext(r.Context(), observability.NewNopLogger())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", name)
	}
	return id, nil
}

// page reads limit and offset query parameters, clamping limit to maxPageSize.
func page(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, badRequest("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, badRequest("invalid offset")
		}
	}
	return min(limit, maxPageSize), offset, nil
}

// actor returns the authenticated caller. Routes that reach it sit behind
// RequireActor, so a missing actor is a wiring error.
func actor(r *http.Request) domain.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}
