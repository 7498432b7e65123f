package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/robertarktes/venue-ticketing/internal/adapters/redis"
)

func TestIdempotency_GetMissing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisadapter.NewIdempotency(db)

	mock.ExpectGet("idemp:k1").RedisNil()

	resp, err := store.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_SetThenGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisadapter.NewIdempotency(db)
	ctx := context.Background()
	stored := []byte(`{"status":201,"content_type":"application/json","result":"eyJvayI6dHJ1ZX0="}`)

	mock.ExpectSet("idemp:k2", stored, time.Hour).SetVal("OK")
	mock.ExpectGet("idemp:k2").SetVal(string(stored))

	require.NoError(t, store.Set(ctx, "k2", redisadapter.IdempResponse{
		Status:      201,
		ContentType: "application/json",
		Result:      []byte(`{"ok":true}`),
	}, time.Hour))

	resp, err := store.Get(ctx, "k2")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_Lock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisadapter.NewIdempotency(db)
	ctx := context.Background()

	mock.ExpectSetNX("idemp:lock:k3", 1, time.Minute).SetVal(true)
	mock.ExpectSetNX("idemp:lock:k3", 1, time.Minute).SetVal(false)
	mock.ExpectDel("idemp:lock:k3").SetVal(1)

	ok, err := store.Lock(ctx, "k3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Lock(ctx, "k3", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Unlock(ctx, "k3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
