// Package outbox relays records written by the service in the same
// transaction as their state change to the message broker.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

const (
	defaultBatch    = 50
	publishAttempts = 3
)

type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetUnpublishedOutbox(ctx context.Context, tx pgx.Tx, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error
	OutboxBacklog(ctx context.Context, now time.Time) (int, time.Duration, error)
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	store   Store
	broker  Broker
	logger  observability.Logger
	batch   int
	backoff time.Duration
}

func NewPublisher(store Store, broker Broker, logger observability.Logger) *Publisher {
	return &Publisher{store: store, broker: broker, logger: logger, batch: defaultBatch, backoff: 200 * time.Millisecond}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := p.RelayBatch(ctx)
				if err != nil {
					p.logger.WithError(err).Error("outbox relay failed")
					break
				}
				if n < p.batch {
					break
				}
			}
			p.reportLag(ctx)
		}
	}
}

// RelayBatch publishes up to one batch of pending records in creation order
// and marks them published. It stops at the first record the broker keeps
// refusing, leaving it and everything after it for the next run.
func (p *Publisher) RelayBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.store.WithTx(ctx, func(tx pgx.Tx) error {
		published = 0
		records, err := p.store.GetUnpublishedOutbox(ctx, tx, p.batch)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := p.publish(ctx, rec); err != nil {
				p.logger.WithError(err).WithField("outbox_id", rec.ID).WithField("routing_key", rec.EventType).Error("failed to publish outbox record")
				return nil
			}
			if err := p.store.MarkPublished(ctx, tx, rec.ID, time.Now().UTC()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		p.logger.WithField("count", published).Debug("outbox records published")
	}
	return published, nil
}

func (p *Publisher) publish(ctx context.Context, rec crdb.OutboxRecord) error {
	msg := amqp.Publishing{
		MessageId:    rec.DedupeKey,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    rec.CreatedAt,
		Type:         rec.EventType,
		Body:         rec.Payload,
	}
	var err error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			observability.RabbitPublishRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff << (attempt - 1)):
			}
		}
		if err = p.broker.Publish(ctx, rec.EventType, msg); err == nil {
			return nil
		}
	}
	return err
}

func (p *Publisher) reportLag(ctx context.Context) {
	_, age, err := p.store.OutboxBacklog(ctx, time.Now().UTC())
	if err != nil {
		p.logger.WithError(err).Warn("failed to read outbox backlog")
		return
	}
	observability.OutboxLag.Set(age.Seconds())
}
