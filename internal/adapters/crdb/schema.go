package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id UUID PRIMARY KEY,
		admin_id UUID NOT NULL,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		capacity INT NOT NULL CHECK (capacity > 0),
		has_sections BOOL NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS venue_sections (
		venue_id UUID NOT NULL REFERENCES venues (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INT NOT NULL,
		capacity INT NOT NULL CHECK (capacity > 0),
		PRIMARY KEY (venue_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		id UUID PRIMARY KEY,
		venue_id UUID NOT NULL REFERENCES venues (id) ON DELETE CASCADE,
		section_name TEXT NOT NULL,
		number INT NOT NULL,
		label TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Available' CHECK (status IN ('Available', 'Unavailable')),
		UNIQUE (venue_id, section_name, number)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		admin_id UUID NOT NULL,
		venue_id UUID NOT NULL REFERENCES venues (id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ NOT NULL,
		lineup TEXT[] NOT NULL,
		images TEXT[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (ends_at > starts_at),
		INDEX events_venue (venue_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_ticket_types (
		event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		position INT NOT NULL,
		price DECIMAL(12, 2) NOT NULL CHECK (price >= 0),
		quantity INT NOT NULL CHECK (quantity >= 0),
		available INT NOT NULL CHECK (available >= 0 AND available <= quantity),
		PRIMARY KEY (event_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS holds (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'RELEASED', 'EXPIRED', 'CONVERTED')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		INDEX holds_active_expiry (status, expires_at)
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		venue_id UUID NOT NULL REFERENCES venues (id),
		seat_id UUID REFERENCES seats (id),
		ticket_type TEXT NOT NULL,
		section_name TEXT,
		seat_number TEXT,
		seat_no INT NOT NULL,
		price DECIMAL(12, 2) NOT NULL CHECK (price >= 0),
		status TEXT NOT NULL CHECK (status IN ('available', 'reserved', 'sold', 'used', 'cancelled')),
		attendee_id UUID,
		attendee_email TEXT,
		qr_token TEXT,
		purchased_at TIMESTAMPTZ,
		hold_id UUID,
		holder_id UUID,
		reserved_until TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (event_id, seat_number),
		CHECK ((status IN ('sold', 'used')) = (attendee_id IS NOT NULL AND qr_token IS NOT NULL)),
		CHECK ((status = 'reserved') = (hold_id IS NOT NULL)),
		INDEX tickets_event_type_status (event_id, ticket_type, status, seat_no),
		INDEX tickets_attendee (attendee_id),
		INDEX tickets_hold (hold_id)
	)`,
	`ALTER TABLE tickets ADD COLUMN IF NOT EXISTS attendee_email TEXT`,
	`CREATE TABLE IF NOT EXISTS ticket_history (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		ticket_id UUID NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor_id UUID,
		attendee_id UUID,
		at TIMESTAMPTZ NOT NULL DEFAULT now(),
		INDEX ticket_history_ticket (ticket_id, at)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT NOT NULL UNIQUE,
		INDEX outbox_pending (status, created_at)
	)`,
}

// Migrate creates the schema. Every statement is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
