// Package projection consumes domain messages from the broker and maintains
// the read side: the public event catalog, the audit trail and attendee mail.
package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/venue-ticketing/internal/messages"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

// Bindings are the routing keys the projection queue subscribes to.
var Bindings = []string{"event.*", "ticket.*", "hold.*"}

type Catalog interface {
	UpsertEvent(ctx context.Context, doc mongoadapter.EventDoc) error
	DeleteEvent(ctx context.Context, id string) error
}

type Auditor interface {
	LogMessage(ctx context.Context, messageID uuid.UUID, action string, actor *uuid.UUID, payload []byte) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Handler struct {
	catalog Catalog
	audit   Auditor
	mailer  Mailer
	logger  observability.Logger
}

// NewHandler builds a handler. mailer may be nil, in which case no mail is sent.
func NewHandler(catalog Catalog, audit Auditor, mailer Mailer, logger observability.Logger) *Handler {
	return &Handler{catalog: catalog, audit: audit, mailer: mailer, logger: logger}
}

type envelope struct {
	Header messages.Header `json:"header"`
}

// Handle applies one message. Messages are audited first so the trail is
// complete even when a later step fails and the message is redelivered.
func (h *Handler) Handle(ctx context.Context, routingKey string, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.Wrapf(err, "decode %s", routingKey)
	}
	if err := h.audit.LogMessage(ctx, env.Header.ID, routingKey, env.Header.ActorID, body); err != nil {
		return errors.Wrap(err, "audit")
	}

	switch routingKey {
	case messages.EventCreated, messages.EventUpdated:
		var m messages.EventChanged
		if err := json.Unmarshal(body, &m); err != nil {
			return errors.Wrapf(err, "decode %s", routingKey)
		}
		return h.catalog.UpsertEvent(ctx, mongoadapter.NewEventDoc(m))
	case messages.EventDeleted:
		var m messages.EventDeletedPayload
		if err := json.Unmarshal(body, &m); err != nil {
			return errors.Wrapf(err, "decode %s", routingKey)
		}
		return h.catalog.DeleteEvent(ctx, m.EventID.String())
	case messages.TicketSold, messages.TicketCancelled, messages.TicketRefunded:
		var m messages.TicketChanged
		if err := json.Unmarshal(body, &m); err != nil {
			return errors.Wrapf(err, "decode %s", routingKey)
		}
		return h.notify(ctx, routingKey, m)
	}
	return nil
}

func (h *Handler) notify(ctx context.Context, routingKey string, m messages.TicketChanged) error {
	if h.mailer == nil || m.AttendeeEmail == "" {
		return nil
	}
	subject, body := ticketMail(routingKey, m)
	return h.mailer.Send(ctx, m.AttendeeEmail, subject, body)
}

func ticketMail(routingKey string, m messages.TicketChanged) (string, string) {
	unit := m.TicketType
	if m.Seat != nil {
		unit = fmt.Sprintf("%s, seat %s", m.TicketType, *m.Seat)
	}
	switch routingKey {
	case messages.TicketSold:
		return "Your ticket for " + m.EventTitle,
			fmt.Sprintf("You bought a %s ticket for %s at %s.\nTicket id: %s\nShow the QR code of this ticket at the entrance.\n", unit, m.EventTitle, m.Price.StringFixed(2), m.TicketID)
	case messages.TicketRefunded:
		return "Refund for " + m.EventTitle,
			fmt.Sprintf("Your %s ticket for %s was refunded (%s).\nTicket id: %s\n", unit, m.EventTitle, m.Price.StringFixed(2), m.TicketID)
	default:
		return "Ticket cancelled for " + m.EventTitle,
			fmt.Sprintf("Your %s ticket for %s was cancelled. Its QR code is no longer valid.\nTicket id: %s\n", unit, m.EventTitle, m.TicketID)
	}
}

// Consume handles deliveries until the channel closes or ctx is done.
// Failed messages are requeued once and dropped on the second failure.
func (h *Handler) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			h.deliver(ctx, d)
		}
	}
}

func (h *Handler) deliver(ctx context.Context, d amqp.Delivery) {
	log := h.logger.WithField("routing_key", d.RoutingKey).WithField("message_id", d.MessageId)
	if err := h.Handle(ctx, d.RoutingKey, d.Body); err != nil {
		observability.MessagesConsumed.WithLabelValues(d.RoutingKey, "error").Inc()
		log.WithError(err).Error("failed to handle message")
		if nerr := d.Nack(false, !d.Redelivered); nerr != nil {
			log.WithError(nerr).Warn("nack failed")
		}
		return
	}
	observability.MessagesConsumed.WithLabelValues(d.RoutingKey, "ok").Inc()
	if err := d.Ack(false); err != nil {
		log.WithError(err).Warn("ack failed")
	}
}
