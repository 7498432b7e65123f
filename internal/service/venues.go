package service

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

type VenueInput struct {
	Name        string
	Location    string
	Capacity    int
	HasSections bool
	Sections    []domain.Section
}

func (in VenueInput) apply(v *domain.Venue) {
	v.Name = in.Name
	v.Location = in.Location
	v.Capacity = in.Capacity
	v.HasSections = in.HasSections
	v.Sections = in.Sections
	if !in.HasSections {
		v.Sections = nil
	}
}

func (s *Service) CreateVenue(ctx context.Context, actor domain.Actor, in VenueInput) (v domain.Venue, err error) {
	ctx, span := observability.StartSpan(ctx, "service.CreateVenue")
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.Authorize(actor, domain.ActionCreateVenue, domain.Resource{}); err != nil {
		return domain.Venue{}, err
	}
	now := s.clock()
	v = domain.Venue{ID: uuid.New(), AdminID: actor.UserID, CreatedAt: now, UpdatedAt: now}
	in.apply(&v)
	if err := domain.ValidateVenue(v); err != nil {
		return domain.Venue{}, err
	}

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return s.repo.InsertVenue(ctx, tx, v)
	})
	if err != nil {
		return domain.Venue{}, err
	}
	s.log(ctx).WithField("venue_id", v.ID).Info("venue created")
	return v, nil
}

func (s *Service) GetVenue(ctx context.Context, id uuid.UUID) (domain.Venue, error) {
	return s.repo.GetVenue(ctx, id)
}

// ListVenues pages through venues. With mine set only the actor's venues are listed.
func (s *Service) ListVenues(ctx context.Context, actor domain.Actor, mine bool, limit, offset int) ([]domain.Venue, error) {
	var adminID *uuid.UUID
	if mine {
		adminID = &actor.UserID
	}
	return s.repo.ListVenues(ctx, adminID, limit, offset)
}

// UpdateVenue replaces the mutable fields of a venue. Name and location may
// always change; capacity and sections only while no event uses the venue.
func (s *Service) UpdateVenue(ctx context.Context, actor domain.Actor, id uuid.UUID, in VenueInput) (v domain.Venue, err error) {
	ctx, span := observability.StartSpan(ctx, "service.UpdateVenue")
	defer func() { observability.EndSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		stored, err := s.repo.GetVenueForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionManageVenue, domain.Resource{OwnerID: stored.AdminID}); err != nil {
			return err
		}
		if err := domain.CheckVenueIntegrity(stored); err != nil {
			return err
		}

		v = stored
		in.apply(&v)
		v.UpdatedAt = s.clock()
		if err := domain.ValidateVenue(v); err != nil {
			return err
		}

		if layoutChanged(stored, v) {
			events, err := s.repo.CountVenueEvents(ctx, tx, id)
			if err != nil {
				return err
			}
			if events > 0 {
				return domain.Conflictf("venue %s is used by %d events; capacity and sections are fixed", id, events)
			}
			if err := s.repo.ReplaceLayout(ctx, tx, v); err != nil {
				return err
			}
		}
		return s.repo.UpdateVenue(ctx, tx, v)
	})
	if err != nil {
		return domain.Venue{}, err
	}
	return v, nil
}

func layoutChanged(a, b domain.Venue) bool {
	return a.Capacity != b.Capacity || a.HasSections != b.HasSections || !slices.Equal(a.Sections, b.Sections)
}

// DeleteVenue removes a venue and its seat arena. Venues still referenced by
// events cannot be deleted.
func (s *Service) DeleteVenue(ctx context.Context, actor domain.Actor, id uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "service.DeleteVenue")
	defer func() { observability.EndSpan(span, err) }()

	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		v, err := s.repo.GetVenueForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionManageVenue, domain.Resource{OwnerID: v.AdminID}); err != nil {
			return err
		}
		events, err := s.repo.CountVenueEvents(ctx, tx, id)
		if err != nil {
			return err
		}
		if events > 0 {
			return domain.Conflictf("venue %s is used by %d events", id, events)
		}
		return s.repo.DeleteVenue(ctx, tx, id)
	})
}

func (s *Service) VenueSeats(ctx context.Context, venueID uuid.UUID) ([]domain.Seat, error) {
	if _, err := s.repo.GetVenue(ctx, venueID); err != nil {
		return nil, err
	}
	return s.repo.ListSeats(ctx, venueID)
}

// SetSeatStatus takes seats of a venue out of service or back in. Every label
// must name a seat of the venue.
func (s *Service) SetSeatStatus(ctx context.Context, actor domain.Actor, venueID uuid.UUID, labels []string, status domain.SeatStatus) (err error) {
	ctx, span := observability.StartSpan(ctx, "service.SetSeatStatus")
	defer func() { observability.EndSpan(span, err) }()

	if status != domain.SeatAvailable && status != domain.SeatUnavailable {
		return domain.Invalid("status", "must be %q or %q", domain.SeatAvailable, domain.SeatUnavailable)
	}
	labels = slices.Compact(slices.Sorted(slices.Values(labels)))
	if len(labels) == 0 || labels[0] == "" {
		return domain.Invalid("seats", "at least one non-empty seat label is required")
	}

	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		v, err := s.repo.GetVenueForUpdate(ctx, tx, venueID)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionManageVenue, domain.Resource{OwnerID: v.AdminID}); err != nil {
			return err
		}
		n, err := s.repo.SetSeatStatus(ctx, tx, venueID, labels, status)
		if err != nil {
			return err
		}
		if n != len(labels) {
			return domain.NotFoundf("%d of %d seats do not exist in venue %s", len(labels)-n, len(labels), venueID)
		}
		return nil
	})
}
