package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	DBTxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_db_tx_retries_total",
			Help: "Transactions retried after a serialization failure",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_outbox_lag_seconds",
			Help: "Age of the oldest record relayed in the last outbox batch",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Ticket units generated at event creation",
		},
	)

	TicketTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_ticket_transitions_total",
			Help: "Applied ticket status transitions",
		},
		[]string{"reason"},
	)

	TransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_transition_conflicts_total",
			Help: "Transitions rejected because the unit was no longer in the expected status",
		},
		[]string{"reason"},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_holds_expired_total",
			Help: "Holds released by the expiry worker",
		},
	)

	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_messages_consumed_total",
			Help: "Messages handled by the consumer",
		},
		[]string{"routing_key", "result"},
	)
)
