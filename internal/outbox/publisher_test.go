package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

type storeMock struct{ mock.Mock }

func (m *storeMock) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (m *storeMock) GetUnpublishedOutbox(ctx context.Context, tx pgx.Tx, limit int) ([]crdb.OutboxRecord, error) {
	args := m.Called(limit)
	return args.Get(0).([]crdb.OutboxRecord), args.Error(1)
}

func (m *storeMock) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error {
	return m.Called(id).Error(0)
}

func (m *storeMock) OutboxBacklog(ctx context.Context, now time.Time) (int, time.Duration, error) {
	args := m.Called()
	return args.Int(0), args.Get(1).(time.Duration), args.Error(2)
}

type brokerMock struct{ mock.Mock }

func (m *brokerMock) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	return m.Called(key, msg.MessageId).Error(0)
}

func record(key string) crdb.OutboxRecord {
	id := uuid.New()
	return crdb.OutboxRecord{ID: id, EventType: key, Payload: []byte(`{}`), DedupeKey: key + ":" + id.String()}
}

func newPublisher(store *storeMock, broker *brokerMock) *Publisher {
	p := NewPublisher(store, broker, observability.NewNopLogger())
	p.backoff = time.Millisecond
	return p
}

func TestRelayBatch_PublishesInOrder(t *testing.T) {
	store, broker := &storeMock{}, &brokerMock{}
	recs := []crdb.OutboxRecord{record("event.created"), record("ticket.sold")}
	store.On("GetUnpublishedOutbox", defaultBatch).Return(recs, nil)
	for _, rec := range recs {
		broker.On("Publish", rec.EventType, rec.DedupeKey).Return(nil).Once()
		store.On("MarkPublished", rec.ID).Return(nil).Once()
	}

	n, err := newPublisher(store, broker).RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	store.AssertExpectations(t)
	broker.AssertExpectations(t)
}

func TestRelayBatch_RetriesThenSucceeds(t *testing.T) {
	store, broker := &storeMock{}, &brokerMock{}
	rec := record("ticket.sold")
	store.On("GetUnpublishedOutbox", defaultBatch).Return([]crdb.OutboxRecord{rec}, nil)
	broker.On("Publish", rec.EventType, rec.DedupeKey).Return(errors.New("channel closed")).Once()
	broker.On("Publish", rec.EventType, rec.DedupeKey).Return(nil).Once()
	store.On("MarkPublished", rec.ID).Return(nil).Once()

	n, err := newPublisher(store, broker).RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	broker.AssertNumberOfCalls(t, "Publish", 2)
}

func TestRelayBatch_StopsAtFirstUndeliverable(t *testing.T) {
	store, broker := &storeMock{}, &brokerMock{}
	first, second := record("ticket.sold"), record("ticket.cancelled")
	store.On("GetUnpublishedOutbox", defaultBatch).Return([]crdb.OutboxRecord{first, second}, nil)
	broker.On("Publish", first.EventType, first.DedupeKey).Return(errors.New("broker down"))

	n, err := newPublisher(store, broker).RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	broker.AssertNumberOfCalls(t, "Publish", publishAttempts)
	store.AssertNotCalled(t, "MarkPublished", mock.Anything)
}

func TestRelayBatch_StoreError(t *testing.T) {
	store, broker := &storeMock{}, &brokerMock{}
	store.On("GetUnpublishedOutbox", defaultBatch).Return([]crdb.OutboxRecord(nil), errors.New("connection refused"))

	_, err := newPublisher(store, broker).RelayBatch(context.Background())
	require.Error(t, err)
	broker.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
