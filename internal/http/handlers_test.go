package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/observability"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

type catalogStub struct {
	docs []mongoadapter.EventDoc
	err  error
}

func (c catalogStub) ListUpcoming(ctx context.Context, now time.Time, limit, offset int) ([]mongoadapter.EventDoc, error) {
	return c.docs, c.err
}

// offlineRouter serves requests that must be answered before the database
// is touched.
func offlineRouter(catalog Catalog, checks map[string]Check) *chi.Mux {
	svc := service.New(nil, nil, observability.NewNopLogger(), service.Options{})
	h := NewHandlers(svc, catalog, auth.NewIssuer(testSecret, time.Hour), checks)
	return SetupRouter(h, observability.NewNopLogger(), auth.NewAuthenticator(testSecret), nil, nil)
}

func newJSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func do(t *testing.T, r http.Handler, method, path string, as *domain.Actor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := newJSONRequest(t, method, path, body)
	if as != nil {
		req.Header.Set("Authorization", bearer(t, *as))
	}
	return serve(r, req)
}

func TestHealthz(t *testing.T) {
	rec := do(t, offlineRouter(nil, nil), http.MethodGet, "/v1/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	checks := map[string]Check{
		"crdb":  func(ctx context.Context) error { return nil },
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	}
	rec := do(t, offlineRouter(nil, checks), http.MethodGet, "/v1/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["crdb"])
	assert.Equal(t, "connection refused", body["redis"])
}

func TestWritesRequireAuthentication(t *testing.T) {
	r := offlineRouter(nil, nil)
	for _, path := range []string{"/v1/venues", "/v1/events", "/v1/seats/reserve", "/v1/tickets/" + uuid.NewString() + "/book"} {
		rec := do(t, r, http.MethodPost, path, nil, map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := do(t, r, http.MethodGet, "/v1/me/tickets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateVenue_Rejections(t *testing.T) {
	r := offlineRouter(nil, nil)
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
	attendee := domain.Actor{UserID: uuid.New(), Role: domain.RoleAttendee}
	venue := venueRequest{
		Name: "Hall", Capacity: 100, HasSections: true,
		Sections: []domain.Section{{Name: "A", Capacity: 60}, {Name: "B", Capacity: 30}},
	}

	rec := do(t, r, http.MethodPost, "/v1/venues", &attendee, venue)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/venues", &admin, venue)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"validation"`)

	rec = do(t, r, http.MethodPost, "/v1/venues", &admin, map[string]string{"colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestBadPathParameter(t *testing.T) {
	r := offlineRouter(nil, nil)
	rec := do(t, r, http.MethodGet, "/v1/venues/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEvent_MultipartValidation(t *testing.T) {
	r := offlineRouter(nil, nil)
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	start := time.Now().Add(24 * time.Hour).UTC()
	require.NoError(t, mw.WriteField("venue_id", uuid.NewString()))
	require.NoError(t, mw.WriteField("title", "Festival"))
	require.NoError(t, mw.WriteField("starts_at", start.Format(time.RFC3339)))
	require.NoError(t, mw.WriteField("ends_at", start.Add(-time.Hour).Format(time.RFC3339)))
	require.NoError(t, mw.WriteField("tickets", `[{"type":"Regular","price":"10","quantity":5}]`))
	fw, err := mw.CreateFormFile("images", "poster.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/events", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, admin))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"ends_at"`)
}

func TestListEvents_FromCatalog(t *testing.T) {
	id := uuid.New()
	catalog := catalogStub{docs: []mongoadapter.EventDoc{{
		ID: id.String(), VenueID: uuid.NewString(), VenueName: "Blue Hall", Title: "Jazz Night",
		TicketTypes: []mongoadapter.TicketTypeDoc{{Type: "VIP", Price: "49.90", Quantity: 10}},
	}}}
	rec := do(t, offlineRouter(catalog, nil), http.MethodGet, "/v1/events?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []eventSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "Blue Hall", got[0].VenueName)
}

func TestListEvents_BadPage(t *testing.T) {
	rec := do(t, offlineRouter(catalogStub{}, nil), http.MethodGet, "/v1/events?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProvisionAdmin(t *testing.T) {
	r := offlineRouter(nil, nil)
	super := domain.Actor{UserID: uuid.New(), Role: domain.RoleSuperAdmin}
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	rec := do(t, r, http.MethodPost, "/v1/admins", &admin, provisionAdminRequest{Email: "new@example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/admins", &super, provisionAdminRequest{Email: "new@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp provisionAdminResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.RoleAdmin, resp.Role)

	got, err := auth.NewAuthenticator(testSecret).Authenticate("Bearer " + resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, got.UserID)
	assert.Equal(t, "new@example.com", got.Email)

	rec = do(t, r, http.MethodPost, "/v1/admins", &super, provisionAdminRequest{Role: domain.RoleAttendee})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEventTickets_RejectsUnknownStatus(t *testing.T) {
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
	rec := do(t, offlineRouter(nil, nil), http.MethodGet, "/v1/events/"+uuid.NewString()+"/tickets?status=lost", &admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
