package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

// TicketRow is a ticket together with the event and seat facts that lifecycle
// decisions need.
type TicketRow struct {
	domain.Ticket
	EventAdminID uuid.UUID
	EventTitle   string
	EventEndsAt  time.Time
	SeatStatus   domain.SeatStatus
}

const ticketSelect = `
	SELECT t.id, t.event_id, t.venue_id, t.ticket_type, t.section_name, t.seat_number, t.seat_no, t.price::TEXT,
		t.status, t.attendee_id, t.attendee_email, t.qr_token, t.purchased_at, t.hold_id, t.holder_id, t.reserved_until, t.updated_at,
		e.admin_id, e.title, e.ends_at, COALESCE(s.status, '')
	FROM tickets t
	JOIN events e ON e.id = t.event_id
	LEFT JOIN seats s ON s.id = t.seat_id`

func scanTicket(row pgx.Row) (TicketRow, error) {
	var (
		t      TicketRow
		price  string
		status string
		seat   string
	)
	err := row.Scan(&t.ID, &t.EventID, &t.VenueID, &t.TicketType, &t.SectionName, &t.SeatNumber, &t.SeatNo, &price,
		&status, &t.AttendeeID, &t.AttendeeEmail, &t.QRToken, &t.PurchasedAt, &t.HoldID, &t.HolderID, &t.ReservedUntil, &t.UpdatedAt,
		&t.EventAdminID, &t.EventTitle, &t.EventEndsAt, &seat)
	if err != nil {
		return TicketRow{}, err
	}
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return TicketRow{}, err
	}
	t.Status = domain.TicketStatus(status)
	t.SeatStatus = domain.SeatStatus(seat)
	return t, nil
}

func collectTickets(rows pgx.Rows) ([]TicketRow, error) {
	defer rows.Close()
	var out []TicketRow
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (TicketRow, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, ticketSelect+` WHERE t.id = $1`, id))
	if err != nil {
		return TicketRow{}, notFound(err, "ticket %s not found", id)
	}
	return t, nil
}

// LockTicket reads a ticket and holds a row lock on it until tx ends.
func (r *Repository) LockTicket(ctx context.Context, tx pgx.Tx, id uuid.UUID) (TicketRow, error) {
	t, err := scanTicket(tx.QueryRow(ctx, ticketSelect+` WHERE t.id = $1 FOR UPDATE OF t`, id))
	if err != nil {
		return TicketRow{}, notFound(err, "ticket %s not found", id)
	}
	return t, nil
}

// LockFirstAvailable locks the lowest-numbered available ticket of a type,
// skipping rows other transactions hold and seats taken out of service.
func (r *Repository) LockFirstAvailable(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, ticketType string) (TicketRow, error) {
	t, err := scanTicket(tx.QueryRow(ctx, ticketSelect+`
		WHERE t.event_id = $1 AND t.ticket_type = $2 AND t.status = 'available'
			AND (s.status IS NULL OR s.status = 'Available')
		ORDER BY t.seat_no
		LIMIT 1
		FOR UPDATE OF t SKIP LOCKED`, eventID, ticketType))
	if err != nil {
		return TicketRow{}, notFound(err, "no available %q ticket for event %s", ticketType, eventID)
	}
	return t, nil
}

// LockSelection locks the tickets of an event named by seat label or id.
func (r *Repository) LockSelection(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, sel domain.Selection) ([]TicketRow, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(sel.Seats) > 0 {
		rows, err = tx.Query(ctx, ticketSelect+`
			WHERE t.event_id = $1 AND t.seat_number = ANY($2) ORDER BY t.id FOR UPDATE OF t`, eventID, sel.Seats)
	} else {
		rows, err = tx.Query(ctx, ticketSelect+`
			WHERE t.event_id = $1 AND t.id = ANY($2) ORDER BY t.id FOR UPDATE OF t`, eventID, sel.TicketIDs)
	}
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// UpdateTicket writes the mutable fields of t, provided the stored status is
// still from. It reports false when the row moved on in the meantime.
func (r *Repository) UpdateTicket(ctx context.Context, tx pgx.Tx, t domain.Ticket, from domain.TicketStatus) (bool, error) {
	result, err := tx.Exec(ctx, `
		UPDATE tickets SET status = $3, attendee_id = $4, attendee_email = $5, qr_token = $6, purchased_at = $7,
			hold_id = $8, holder_id = $9, reserved_until = $10, updated_at = $11
		WHERE id = $1 AND status = $2
	`, t.ID, string(from), string(t.Status), t.AttendeeID, t.AttendeeEmail, t.QRToken, t.PurchasedAt,
		t.HoldID, t.HolderID, t.ReservedUntil, t.UpdatedAt)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// ReserveTickets moves all ids from available to reserved under hold. It
// returns the number of rows changed; callers roll back unless it is len(ids).
func (r *Repository) ReserveTickets(ctx context.Context, tx pgx.Tx, hold domain.Hold, ids []uuid.UUID, now time.Time) (int, error) {
	result, err := tx.Exec(ctx, `
		UPDATE tickets SET status = 'reserved', hold_id = $2, holder_id = $3, reserved_until = $4, updated_at = $5
		WHERE id = ANY($1) AND status = 'available'
	`, ids, hold.ID, hold.UserID, hold.ExpiresAt, now)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

// ReleaseTickets returns reserved tickets among ids to available, optionally
// only those held by holder, and returns the ids it released.
func (r *Repository) ReleaseTickets(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, holder *uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		UPDATE tickets SET status = 'available', hold_id = NULL, holder_id = NULL, reserved_until = NULL, updated_at = $3
		WHERE id = ANY($1) AND status = 'reserved' AND ($2::UUID IS NULL OR holder_id = $2)
		RETURNING id
	`, ids, holder, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// ReleaseHoldTickets returns every ticket still reserved under a hold to
// available and returns their ids.
func (r *Repository) ReleaseHoldTickets(ctx context.Context, tx pgx.Tx, holdID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		UPDATE tickets SET status = 'available', hold_id = NULL, holder_id = NULL, reserved_until = NULL, updated_at = $2
		WHERE hold_id = $1 AND status = 'reserved'
		RETURNING id
	`, holdID, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *Repository) InsertHistory(ctx context.Context, tx pgx.Tx, entries ...domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, h := range entries {
		batch.Queue(`
			INSERT INTO ticket_history (ticket_id, from_status, to_status, reason, actor_id, attendee_id, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, h.TicketID, string(h.From), string(h.To), string(h.Reason), h.ActorID, h.AttendeeID, h.At)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *Repository) TicketHistory(ctx context.Context, ticketID uuid.UUID) ([]domain.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ticket_id, from_status, to_status, reason, actor_id, attendee_id, at
		FROM ticket_history WHERE ticket_id = $1 ORDER BY at, id
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			h                domain.HistoryEntry
			from, to, reason string
		)
		if err := rows.Scan(&h.TicketID, &from, &to, &reason, &h.ActorID, &h.AttendeeID, &h.At); err != nil {
			return nil, err
		}
		h.From, h.To, h.Reason = domain.TicketStatus(from), domain.TicketStatus(to), domain.Reason(reason)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repository) ListAttendeeTickets(ctx context.Context, attendeeID uuid.UUID) ([]TicketRow, error) {
	rows, err := r.pool.Query(ctx, ticketSelect+`
		WHERE t.attendee_id = $1 ORDER BY e.starts_at, t.seat_no`, attendeeID)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// ListEventTickets pages through the tickets of an event, optionally
// filtered by status.
func (r *Repository) ListEventTickets(ctx context.Context, eventID uuid.UUID, status *domain.TicketStatus, limit, offset int) ([]TicketRow, error) {
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	rows, err := r.pool.Query(ctx, ticketSelect+`
		WHERE t.event_id = $1 AND ($2::TEXT IS NULL OR t.status = $2)
		ORDER BY t.ticket_type, t.seat_no
		LIMIT $3 OFFSET $4`, eventID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (r *Repository) InsertHold(ctx context.Context, tx pgx.Tx, hold domain.Hold) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO holds (id, event_id, user_id, expires_at, status) VALUES ($1, $2, $3, $4, 'ACTIVE')
	`, hold.ID, hold.EventID, hold.UserID, hold.ExpiresAt)
	return err
}

// CloseHold moves an active hold to status once none of its tickets remain
// reserved. It reports whether the hold was closed.
func (r *Repository) CloseHold(ctx context.Context, tx pgx.Tx, holdID uuid.UUID, status domain.HoldStatus) (bool, error) {
	result, err := tx.Exec(ctx, `
		UPDATE holds SET status = $2
		WHERE id = $1 AND status = 'ACTIVE'
			AND NOT EXISTS (SELECT 1 FROM tickets WHERE hold_id = $1 AND status = 'reserved')
	`, holdID, string(status))
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// ExpireHold marks an active hold expired regardless of its tickets.
func (r *Repository) ExpireHold(ctx context.Context, tx pgx.Tx, holdID uuid.UUID) (bool, error) {
	result, err := tx.Exec(ctx, `
		UPDATE holds SET status = 'EXPIRED' WHERE id = $1 AND status = 'ACTIVE'
	`, holdID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *Repository) GetExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, expires_at
		FROM holds WHERE status = 'ACTIVE' AND expires_at <= $1
		ORDER BY expires_at LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		var h domain.Hold
		if err := rows.Scan(&h.ID, &h.EventID, &h.UserID, &h.ExpiresAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}
