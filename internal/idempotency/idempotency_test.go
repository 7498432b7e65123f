package idempotency_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/robertarktes/venue-ticketing/internal/adapters/redis"
	"github.com/robertarktes/venue-ticketing/internal/idempotency"
)

const storedCreated = `{"status":201,"content_type":"application/json","result":"eyJvayI6dHJ1ZX0="}`

func newStore() (*idempotency.Idempotency, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return idempotency.NewIdempotency(redisadapter.NewIdempotency(db), time.Hour), mock
}

func created() *idempotency.Response {
	return &idempotency.Response{Status: 201, ContentType: "application/json", Result: []byte(`{"ok":true}`)}
}

func TestKey_ScopedByCallerAndRoute(t *testing.T) {
	k := idempotency.Key("user-1", "/v1/seats/reserve", "abc12345")
	assert.Equal(t, k, idempotency.Key("user-1", "/v1/seats/reserve", "abc12345"))
	assert.NotEqual(t, k, idempotency.Key("user-2", "/v1/seats/reserve", "abc12345"))
	assert.NotEqual(t, k, idempotency.Key("user-1", "/v1/seats/release", "abc12345"))
	assert.Len(t, k, 64)
}

func TestBegin_SecondClaimIsInFlight(t *testing.T) {
	store, mock := newStore()
	ctx := context.Background()

	mock.ExpectSetNX("idemp:lock:k", 1, 30*time.Second).SetVal(true)
	mock.ExpectSetNX("idemp:lock:k", 1, 30*time.Second).SetVal(false)

	require.NoError(t, store.Begin(ctx, "k"))
	err := store.Begin(ctx, "k")
	assert.True(t, errors.Is(err, idempotency.ErrInFlight), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBegin_RedisError(t *testing.T) {
	store, mock := newStore()
	down := errors.New("connection refused")

	mock.ExpectSetNX("idemp:lock:k", 1, 30*time.Second).SetErr(down)

	err := store.Begin(context.Background(), "k")
	assert.True(t, errors.Is(err, down), "got %v", err)
	assert.False(t, errors.Is(err, idempotency.ErrInFlight))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_StoresThenReplays(t *testing.T) {
	store, mock := newStore()
	ctx := context.Background()

	mock.ExpectSet("idemp:k", []byte(storedCreated), time.Hour).SetVal("OK")
	mock.ExpectDel("idemp:lock:k").SetVal(1)
	mock.ExpectGet("idemp:k").SetVal(storedCreated)

	require.NoError(t, store.Finish(ctx, "k", created()))
	resp, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_WithoutResponseOnlyUnlocks(t *testing.T) {
	store, mock := newStore()
	ctx := context.Background()

	mock.ExpectDel("idemp:lock:k").SetVal(1)
	mock.ExpectGet("idemp:k").RedisNil()

	require.NoError(t, store.Finish(ctx, "k", nil))
	resp, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_UnlocksWhenStoreFails(t *testing.T) {
	store, mock := newStore()
	setErr := errors.New("set failed")

	mock.ExpectSet("idemp:k", []byte(storedCreated), time.Hour).SetErr(setErr)
	mock.ExpectDel("idemp:lock:k").SetVal(1)

	err := store.Finish(context.Background(), "k", created())
	assert.True(t, errors.Is(err, setErr), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_CombinesStoreAndUnlockFailures(t *testing.T) {
	store, mock := newStore()
	setErr := errors.New("set failed")
	unlockErr := errors.New("unlock failed")

	mock.ExpectSet("idemp:k", []byte(storedCreated), time.Hour).SetErr(setErr)
	mock.ExpectDel("idemp:lock:k").SetErr(unlockErr)

	err := store.Finish(context.Background(), "k", created())
	require.Error(t, err)
	assert.True(t, errors.Is(err, setErr), "got %v", err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "unlock failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_UnlockFailureWithoutResponse(t *testing.T) {
	store, mock := newStore()
	unlockErr := errors.New("unlock failed")

	mock.ExpectDel("idemp:lock:k").SetErr(unlockErr)

	err := store.Finish(context.Background(), "k", nil)
	assert.True(t, errors.Is(err, unlockErr), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
