package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/venue-ticketing/internal/messages"
)

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares a durable queue bound to the domain exchange for each
// of keys. Topic wildcards such as "ticket.*" are allowed.
func NewConsumer(conn *amqp.Connection, queue string, keys ...string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(messages.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	for _, key := range keys {
		if err := ch.QueueBind(queue, key, messages.Exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, err
		}
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue}, nil
}

// Consume starts delivery with manual acks. The channel closes when ctx is
// cancelled or the connection drops.
func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
