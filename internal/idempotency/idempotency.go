// Package idempotency stores the responses of keyed write requests so that a
// retried request replays the first answer instead of acting twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"

	redisadapter "github.com/robertarktes/venue-ticketing/internal/adapters/redis"
)

const lockTTL = 30 * time.Second

var ErrInFlight = errors.New("a request with this idempotency key is in progress")

type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

// Key scopes a client key to the caller and route, so two users cannot
// collide and a key reused on another endpoint does not replay.
func Key(scope, route, clientKey string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + route + "\x00" + clientKey))
	return hex.EncodeToString(sum[:])
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.redis.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, ContentType: stored.ContentType, Result: stored.Result}, nil
}

// Begin claims key for the current request. It fails with ErrInFlight while
// an earlier request with the same key has not finished.
func (i *Idempotency) Begin(ctx context.Context, key string) error {
	ok, err := i.redis.Lock(ctx, key, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInFlight
	}
	return nil
}

// Finish stores resp for key and releases the claim taken by Begin.
func (i *Idempotency) Finish(ctx context.Context, key string, resp *Response) error {
	var err error
	if resp != nil {
		err = i.redis.Set(ctx, key, redisadapter.IdempResponse{
			Status:      resp.Status,
			ContentType: resp.ContentType,
			Result:      resp.Result,
		}, i.ttl)
	}
	return errors.CombineErrors(err, i.redis.Unlock(ctx, key))
}
