package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

func (r *Repository) InsertVenue(ctx context.Context, tx pgx.Tx, v domain.Venue) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO venues (id, admin_id, name, location, capacity, has_sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, v.ID, v.AdminID, v.Name, v.Location, v.Capacity, v.HasSections, v.CreatedAt)
	if err != nil {
		return err
	}
	return r.insertLayout(ctx, tx, v)
}

// insertLayout writes the sections of a venue and its seat arena.
func (r *Repository) insertLayout(ctx context.Context, tx pgx.Tx, v domain.Venue) error {
	if !v.HasSections {
		return nil
	}
	batch := &pgx.Batch{}
	for i, s := range v.Sections {
		batch.Queue(`
			INSERT INTO venue_sections (venue_id, name, position, capacity) VALUES ($1, $2, $3, $4)
		`, v.ID, s.Name, i, s.Capacity)
	}
	for _, seat := range domain.SeatsFor(v) {
		batch.Queue(`
			INSERT INTO seats (id, venue_id, section_name, number, label, status) VALUES ($1, $2, $3, $4, $5, $6)
		`, seat.ID, seat.VenueID, seat.SectionName, seat.Number, seat.Label, string(seat.Status))
	}
	return tx.SendBatch(ctx, batch).Close()
}

// ReplaceLayout drops the sections and seats of a venue and writes the new ones.
// Callers must ensure no event references the venue.
func (r *Repository) ReplaceLayout(ctx context.Context, tx pgx.Tx, v domain.Venue) error {
	if _, err := tx.Exec(ctx, `DELETE FROM seats WHERE venue_id = $1`, v.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM venue_sections WHERE venue_id = $1`, v.ID); err != nil {
		return err
	}
	return r.insertLayout(ctx, tx, v)
}

func (r *Repository) UpdateVenue(ctx context.Context, tx pgx.Tx, v domain.Venue) error {
	result, err := tx.Exec(ctx, `
		UPDATE venues SET name = $2, location = $3, capacity = $4, has_sections = $5, updated_at = $6
		WHERE id = $1
	`, v.ID, v.Name, v.Location, v.Capacity, v.HasSections, v.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.NotFoundf("venue %s not found", v.ID)
	}
	return nil
}

func (r *Repository) DeleteVenue(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	result, err := tx.Exec(ctx, `DELETE FROM venues WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.NotFoundf("venue %s not found", id)
	}
	return nil
}

func (r *Repository) GetVenue(ctx context.Context, id uuid.UUID) (domain.Venue, error) {
	return getVenue(ctx, r.pool, id, false)
}

// GetVenueForUpdate reads a venue and locks its row until tx ends.
func (r *Repository) GetVenueForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Venue, error) {
	return getVenue(ctx, tx, id, true)
}

func getVenue(ctx context.Context, q DBTX, id uuid.UUID, lock bool) (domain.Venue, error) {
	query := `
		SELECT id, admin_id, name, location, capacity, has_sections, created_at, updated_at
		FROM venues WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var v domain.Venue
	err := q.QueryRow(ctx, query, id).Scan(&v.ID, &v.AdminID, &v.Name, &v.Location, &v.Capacity, &v.HasSections, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return domain.Venue{}, notFound(err, "venue %s not found", id)
	}

	rows, err := q.Query(ctx, `
		SELECT name, capacity FROM venue_sections WHERE venue_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return domain.Venue{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(&s.Name, &s.Capacity); err != nil {
			return domain.Venue{}, err
		}
		v.Sections = append(v.Sections, s)
	}
	return v, rows.Err()
}

// ListVenues returns venues ordered by name. A nil adminID lists all venues.
func (r *Repository) ListVenues(ctx context.Context, adminID *uuid.UUID, limit, offset int) ([]domain.Venue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM venues
		WHERE $1::UUID IS NULL OR admin_id = $1
		ORDER BY name, id LIMIT $2 OFFSET $3
	`, adminID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}

	venues := make([]domain.Venue, 0, len(ids))
	for _, id := range ids {
		v, err := r.GetVenue(ctx, id)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, nil
}

func (r *Repository) CountVenueEvents(ctx context.Context, tx pgx.Tx, venueID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT count(*) FROM events WHERE venue_id = $1`, venueID).Scan(&n)
	return n, err
}

func (r *Repository) ListSeats(ctx context.Context, venueID uuid.UUID) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.venue_id, s.section_name, s.number, s.label, s.status
		FROM seats s JOIN venue_sections vs ON vs.venue_id = s.venue_id AND vs.name = s.section_name
		WHERE s.venue_id = $1
		ORDER BY vs.position, s.number
	`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		var s domain.Seat
		var status string
		if err := rows.Scan(&s.ID, &s.VenueID, &s.SectionName, &s.Number, &s.Label, &status); err != nil {
			return nil, err
		}
		s.Status = domain.SeatStatus(status)
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// SetSeatStatus marks the named seats of a venue Available or Unavailable and
// returns how many seats matched.
func (r *Repository) SetSeatStatus(ctx context.Context, tx pgx.Tx, venueID uuid.UUID, labels []string, status domain.SeatStatus) (int, error) {
	result, err := tx.Exec(ctx, `
		UPDATE seats SET status = $3 WHERE venue_id = $1 AND label = ANY($2)
	`, venueID, labels, string(status))
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}
