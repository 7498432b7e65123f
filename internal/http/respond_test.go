package http

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/idempotency"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", domain.Invalid("capacity", "must be positive"), http.StatusUnprocessableEntity, "validation"},
		{"wrapped validation", errors.Wrap(domain.Invalid("title", "empty"), "create event"), http.StatusUnprocessableEntity, "validation"},
		{"bad request", badRequest("invalid id"), http.StatusBadRequest, "bad_request"},
		{"unauthenticated", auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", domain.Forbiddenf("no"), http.StatusForbidden, "forbidden"},
		{"not found", domain.NotFoundf("ticket %d", 1), http.StatusNotFound, "not_found"},
		{"conflict", domain.Conflictf("sold out"), http.StatusConflict, "conflict"},
		{"serialization", domain.ErrSerializationFailure, http.StatusConflict, "conflict"},
		{"in flight", idempotency.ErrInFlight, http.StatusConflict, "conflict"},
		{"integrity", domain.Integrityf("sections disagree"), http.StatusInternalServerError, "integrity"},
		{"qr expired", &domain.QRRejection{Reason: domain.QRExpired}, http.StatusUnprocessableEntity, "rejected"},
		{"qr wrong status", &domain.QRRejection{Reason: domain.QRWrongStatus}, http.StatusConflict, "rejected"},
		{"qr not found", &domain.QRRejection{Reason: domain.QRNotFound}, http.StatusNotFound, "rejected"},
		{"other", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := errorStatus(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, body.Kind)
		})
	}
}

func TestErrorStatus_HidesInternalDetail(t *testing.T) {
	_, body := errorStatus(errors.New("dial tcp 10.0.0.3:26257: refused"))
	assert.Equal(t, "internal error", body.Error)
}

func TestErrorStatus_NamesField(t *testing.T) {
	_, body := errorStatus(domain.Invalid("sections", "sum must equal capacity"))
	assert.Equal(t, "sections", body.Field)
}
