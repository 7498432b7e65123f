package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/venue-ticketing/internal/messages"
)

type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewPublisher opens a channel on conn and declares the durable topic
// exchange domain messages are published to. Confirms are enabled so a
// publish only returns once the broker has accepted the message.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(messages.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, exchange: messages.Exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, msg)
	if err != nil {
		return err
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return amqp.ErrClosed
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
