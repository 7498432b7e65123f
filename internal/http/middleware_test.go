package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/idempotency"
)

const testSecret = "http-test-secret"

func bearer(t *testing.T, a domain.Actor) string {
	t.Helper()
	token, _, err := auth.NewIssuer(testSecret, time.Hour).Issue(a, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := auth.ActorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(a.UserID.String()))
	})
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(auth.NewAuthenticator(testSecret))(echoActor())
	user := domain.Actor{UserID: uuid.New(), Role: domain.RoleAttendee}

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", bearer(t, user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, user.UserID.String(), rec.Body.String())
	})
	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"unauthenticated"`)
	})
}

func TestRequireActor(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireActor(echoActor()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type limiterStub struct {
	mu      sync.Mutex
	allowed map[string]bool
	keys    []string
}

func (l *limiterStub) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	allowed, ok := l.allowed[strings.SplitN(key, ":", 2)[0]]
	return !ok || allowed
}

func TestRateLimitMiddleware(t *testing.T) {
	user := domain.Actor{UserID: uuid.New(), Role: domain.RoleAttendee}
	newHandler := func(l *limiterStub) http.Handler {
		return AuthMiddleware(auth.NewAuthenticator(testSecret))(RateLimitMiddleware(l)(echoActor()))
	}

	t.Run("checks ip and user", func(t *testing.T) {
		l := &limiterStub{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:5123"
		req.Header.Set("Authorization", bearer(t, user))
		rec := httptest.NewRecorder()
		newHandler(l).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"ip:203.0.113.9", "user:" + user.UserID.String()}, l.keys)
	})
	t.Run("user over limit", func(t *testing.T) {
		l := &limiterStub{allowed: map[string]bool{"user": false}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", bearer(t, user))
		rec := httptest.NewRecorder()
		newHandler(l).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	})
	t.Run("ip over limit", func(t *testing.T) {
		l := &limiterStub{allowed: map[string]bool{"ip": false}}
		rec := httptest.NewRecorder()
		newHandler(l).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

type memoryStore struct {
	mu       sync.Mutex
	stored   map[string]*idempotency.Response
	inFlight map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{stored: map[string]*idempotency.Response{}, inFlight: map[string]bool{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) (*idempotency.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[key], nil
}

func (s *memoryStore) Begin(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return idempotency.ErrInFlight
	}
	s.inFlight[key] = true
	return nil
}

func (s *memoryStore) Finish(ctx context.Context, key string, resp *idempotency.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	if resp != nil {
		s.stored[key] = resp
	}
	return nil
}

func TestIdempotencyMiddleware(t *testing.T) {
	calls := 0
	status := http.StatusCreated
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, status, map[string]int{"call": calls})
	})
	store := newMemoryStore()
	handler := IdempotencyMiddleware(store)(next)

	post := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := post("/v1/tickets/1/book", "key-00000001")
	assert.Equal(t, http.StatusCreated, first.Code)
	again := post("/v1/tickets/1/book", "key-00000001")
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)

	post("/v1/tickets/2/book", "key-00000001")
	assert.Equal(t, 2, calls, "same key on another route is a new request")

	post("/v1/tickets/1/book", "")
	assert.Equal(t, 3, calls, "requests without a key always run")

	assert.Equal(t, http.StatusBadRequest, post("/v1/tickets/1/book", "short").Code)

	status = http.StatusInternalServerError
	post("/v1/tickets/3/book", "key-00000002")
	post("/v1/tickets/3/book", "key-00000002")
	assert.Equal(t, 5, calls, "server errors are not replayed")
}

func TestIdempotencyMiddleware_InFlight(t *testing.T) {
	store := newMemoryStore()
	handler := IdempotencyMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	key := idempotency.Key("ip:192.0.2.1", "/v1/seats/reserve", "key-00000001")
	require.NoError(t, store.Begin(context.Background(), key))

	req := httptest.NewRequest(http.MethodPost, "/v1/seats/reserve", nil)
	req.Header.Set("Idempotency-Key", "key-00000001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
