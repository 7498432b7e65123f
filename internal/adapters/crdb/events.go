package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

func (r *Repository) InsertEvent(ctx context.Context, tx pgx.Tx, e domain.Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO events (id, admin_id, venue_id, title, description, starts_at, ends_at, lineup, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, e.ID, e.AdminID, e.VenueID, e.Title, e.Description, e.StartsAt, e.EndsAt, nonNil(e.Lineup), nonNil(e.Images), e.CreatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, t := range e.TicketTypes {
		batch.Queue(`
			INSERT INTO event_ticket_types (event_id, type, position, price, quantity, available)
			VALUES ($1, $2, $3, $4::TEXT::DECIMAL, $5, $6)
		`, e.ID, t.Type, i, t.Price.String(), t.Quantity, t.OnSale())
	}
	return tx.SendBatch(ctx, batch).Close()
}

// InsertTickets writes a generated inventory in one batch. Seated tickets are
// linked to the seat arena of their venue by section and seat number.
func (r *Repository) InsertTickets(ctx context.Context, tx pgx.Tx, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(`
			INSERT INTO tickets (id, event_id, venue_id, seat_id, ticket_type, section_name, seat_number, seat_no, price, status, updated_at)
			VALUES ($1, $2, $3,
				(SELECT id FROM seats WHERE venue_id = $3 AND section_name = $5 AND number = $7),
				$4, $5, $6, $7, $8::TEXT::DECIMAL, $9, $10)
		`, t.ID, t.EventID, t.VenueID, t.TicketType, t.SectionName, t.SeatNumber, t.SeatNo, t.Price.String(), string(t.Status), t.UpdatedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *Repository) DeleteEventTickets(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM holds WHERE event_id = $1`, eventID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM tickets WHERE event_id = $1`, eventID)
	return err
}

func (r *Repository) UpdateEvent(ctx context.Context, tx pgx.Tx, e domain.Event) error {
	result, err := tx.Exec(ctx, `
		UPDATE events SET venue_id = $2, title = $3, description = $4, starts_at = $5, ends_at = $6,
			lineup = $7, images = $8, updated_at = $9
		WHERE id = $1
	`, e.ID, e.VenueID, e.Title, e.Description, e.StartsAt, e.EndsAt, nonNil(e.Lineup), nonNil(e.Images), e.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.NotFoundf("event %s not found", e.ID)
	}
	return nil
}

func (r *Repository) DeleteEvent(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	result, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.NotFoundf("event %s not found", id)
	}
	return nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	return getEvent(ctx, r.pool, id, false)
}

// GetEventForUpdate reads an event and locks its row until tx ends.
func (r *Repository) GetEventForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Event, error) {
	return getEvent(ctx, tx, id, true)
}

func getEvent(ctx context.Context, q DBTX, id uuid.UUID, lock bool) (domain.Event, error) {
	query := `
		SELECT id, admin_id, venue_id, title, description, starts_at, ends_at, lineup, images, created_at, updated_at
		FROM events WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var e domain.Event
	err := q.QueryRow(ctx, query, id).Scan(&e.ID, &e.AdminID, &e.VenueID, &e.Title, &e.Description,
		&e.StartsAt, &e.EndsAt, &e.Lineup, &e.Images, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.Event{}, notFound(err, "event %s not found", id)
	}

	rows, err := q.Query(ctx, `
		SELECT type, price::TEXT, quantity, available FROM event_ticket_types WHERE event_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return domain.Event{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t     domain.TicketType
			price string
			avail int
		)
		if err := rows.Scan(&t.Type, &price, &t.Quantity, &avail); err != nil {
			return domain.Event{}, err
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return domain.Event{}, err
		}
		t.Available = &avail
		e.TicketTypes = append(e.TicketTypes, t)
	}
	return e, rows.Err()
}

// ListEvents returns events ordered by start time.
func (r *Repository) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM events ORDER BY starts_at, id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// CountTicketsInStatus counts tickets of an event in any of the given states.
func (r *Repository) CountTicketsInStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, statuses ...domain.TicketStatus) (int, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM tickets WHERE event_id = $1 AND status = ANY($2)
	`, eventID, names).Scan(&n)
	return n, err
}

// Availability derives per-type inventory counts from the ticket rows.
func (r *Repository) Availability(ctx context.Context, eventID uuid.UUID) ([]domain.TypeAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tt.type, tt.price::TEXT,
			count(t.id),
			count(t.id) FILTER (WHERE t.status = 'available'),
			count(t.id) FILTER (WHERE t.status = 'reserved'),
			count(t.id) FILTER (WHERE t.status = 'sold'),
			count(t.id) FILTER (WHERE t.status = 'used'),
			count(t.id) FILTER (WHERE t.status = 'cancelled')
		FROM event_ticket_types tt
		LEFT JOIN tickets t ON t.event_id = tt.event_id AND t.ticket_type = tt.type
		WHERE tt.event_id = $1
		GROUP BY tt.type, tt.price, tt.position
		ORDER BY tt.position
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TypeAvailability
	for rows.Next() {
		var (
			a     domain.TypeAvailability
			price string
		)
		if err := rows.Scan(&a.Type, &price, &a.Total, &a.Available, &a.Reserved, &a.Sold, &a.Used, &a.Withdrawn); err != nil {
			return nil, err
		}
		if a.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SeatMap lists the seated tickets of an event with their derived seat status.
func (r *Repository) SeatMap(ctx context.Context, eventID uuid.UUID) ([]domain.SeatView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.section_name, t.seat_number, t.price::TEXT, t.status, COALESCE(s.status, 'Available')
		FROM tickets t LEFT JOIN seats s ON s.id = t.seat_id
		WHERE t.event_id = $1 AND t.seat_number IS NOT NULL
		ORDER BY t.section_name, t.seat_no
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SeatView
	for rows.Next() {
		var (
			v                    domain.SeatView
			price, status, arena string
		)
		if err := rows.Scan(&v.TicketID, &v.SectionName, &v.Label, &price, &status, &arena); err != nil {
			return nil, err
		}
		if v.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		v.Status = domain.SeatStatusFor(domain.TicketStatus(status), domain.SeatStatus(arena))
		out = append(out, v)
	}
	return out, rows.Err()
}
