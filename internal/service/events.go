package service

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/messages"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

const maxConcurrentUploads = 4

// Upload is an image attached to an event request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type EventInput struct {
	VenueID     uuid.UUID
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Lineup      []string
	Images      []string
	TicketTypes []domain.TicketType
}

// EventPatch carries the fields of an update; nil fields are left unchanged.
type EventPatch struct {
	VenueID     *uuid.UUID
	Title       *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Lineup      *[]string
	Images      *[]string
}

type EventDetails struct {
	domain.Event
	Availability []domain.TypeAvailability
}

func validateEvent(e domain.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return domain.Invalid("title", "must not be empty")
	}
	if e.StartsAt.IsZero() || e.EndsAt.IsZero() {
		return domain.Invalid("starts_at", "start and end times are required")
	}
	if !e.EndsAt.After(e.StartsAt) {
		return domain.Invalid("ends_at", "must be after the start")
	}
	return nil
}

// CreateEvent validates an event against its venue, uploads its images and
// then stores the event with its full ticket inventory in one transaction.
// It returns the stored event and the number of tickets generated.
func (s *Service) CreateEvent(ctx context.Context, actor domain.Actor, in EventInput, uploads []Upload) (e domain.Event, generated int, err error) {
	ctx, span := observability.StartSpan(ctx, "service.CreateEvent")
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.Authorize(actor, domain.ActionCreateEvent, domain.Resource{}); err != nil {
		return domain.Event{}, 0, err
	}
	now := s.clock()
	e = domain.Event{
		ID:          uuid.New(),
		AdminID:     actor.UserID,
		VenueID:     in.VenueID,
		Title:       in.Title,
		Description: in.Description,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Lineup:      in.Lineup,
		Images:      in.Images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateEvent(e); err != nil {
		return domain.Event{}, 0, err
	}

	venue, err := s.repo.GetVenue(ctx, in.VenueID)
	if err != nil {
		return domain.Event{}, 0, err
	}
	if err := domain.Authorize(actor, domain.ActionManageVenue, domain.Resource{OwnerID: venue.AdminID}); err != nil {
		return domain.Event{}, 0, err
	}
	if e.TicketTypes, err = domain.ValidateTicketTypes(venue, in.TicketTypes); err != nil {
		return domain.Event{}, 0, err
	}

	urls, err := s.uploadImages(ctx, e.ID, uploads)
	if err != nil {
		return domain.Event{}, 0, err
	}
	e.Images = append(e.Images, urls...)

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		venue, err := s.repo.GetVenueForUpdate(ctx, tx, in.VenueID)
		if err != nil {
			return err
		}
		if err := domain.CheckVenueIntegrity(venue); err != nil {
			return err
		}
		if err := s.repo.InsertEvent(ctx, tx, e); err != nil {
			return err
		}
		generated, err = s.generateInventory(ctx, tx, e, venue)
		if err != nil {
			return err
		}
		msg := messages.NewEventChanged(&actor.UserID, e, venue, generated)
		return s.repo.Enqueue(ctx, tx, "event", e.ID, messages.EventCreated, msg)
	})
	if err != nil {
		return domain.Event{}, 0, err
	}

	observability.TicketsIssued.Add(float64(generated))
	s.log(ctx).WithField("event_id", e.ID).WithField("tickets", generated).Info("event created")
	return e, generated, nil
}

// generateInventory writes the ticket rows of e at venue and returns how many.
func (s *Service) generateInventory(ctx context.Context, tx pgx.Tx, e domain.Event, venue domain.Venue) (int, error) {
	tickets, orphaned := domain.GenerateInventory(e, venue, e.TicketTypes, s.clock())
	for _, section := range orphaned {
		s.log(ctx).WithField("event_id", e.ID).WithField("section", section).Warn("section has no ticket type, no tickets generated")
	}
	if err := s.repo.InsertTickets(ctx, tx, tickets); err != nil {
		return 0, errors.Wrap(err, "insert inventory")
	}
	return len(tickets), nil
}

func (s *Service) uploadImages(ctx context.Context, eventID uuid.UUID, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.uploader == nil {
		return nil, domain.Invalid("images", "image uploads are not configured")
	}

	urls := make([]string, len(uploads))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i, u := range uploads {
		g.Go(func() error {
			body, err := u.Open()
			if err != nil {
				return errors.Wrapf(err, "open %s", u.Filename)
			}
			defer body.Close()

			key := "events/" + eventID.String() + "/" + uuid.NewString() + path.Ext(u.Filename)
			url, err := s.uploader.Upload(ctx, key, body, u.ContentType, u.Size)
			if err != nil {
				return errors.Wrapf(err, "upload %s", u.Filename)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (EventDetails, error) {
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return EventDetails{}, err
	}
	avail, err := s.repo.Availability(ctx, id)
	if err != nil {
		return EventDetails{}, err
	}
	return EventDetails{Event: e, Availability: avail}, nil
}

func (s *Service) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx, limit, offset)
}

// UpdateEvent applies patch to an event. Moving an event to another venue
// regenerates its inventory, which is only allowed while no ticket has been
// reserved or sold.
func (s *Service) UpdateEvent(ctx context.Context, actor domain.Actor, id uuid.UUID, patch EventPatch) (e domain.Event, err error) {
	ctx, span := observability.StartSpan(ctx, "service.UpdateEvent")
	defer func() { observability.EndSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		stored, err := s.repo.GetEventForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionManageEvent, domain.Resource{OwnerID: stored.AdminID}); err != nil {
			return err
		}

		e = stored
		if patch.Title != nil {
			e.Title = *patch.Title
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.StartsAt != nil {
			e.StartsAt = *patch.StartsAt
		}
		if patch.EndsAt != nil {
			e.EndsAt = *patch.EndsAt
		}
		if patch.Lineup != nil {
			e.Lineup = *patch.Lineup
		}
		if patch.Images != nil {
			e.Images = *patch.Images
		}
		e.UpdatedAt = s.clock()
		if err := validateEvent(e); err != nil {
			return err
		}

		venueChanged := patch.VenueID != nil && *patch.VenueID != stored.VenueID
		var venue domain.Venue
		if venueChanged {
			if venue, err = s.moveInventory(ctx, tx, actor, &e, *patch.VenueID); err != nil {
				return err
			}
		} else if venue, err = s.repo.GetVenue(ctx, e.VenueID); err != nil {
			return err
		}

		if err := s.repo.UpdateEvent(ctx, tx, e); err != nil {
			return err
		}
		generated := 0
		if venueChanged {
			if generated, err = s.generateInventory(ctx, tx, e, venue); err != nil {
				return err
			}
		}
		msg := messages.NewEventChanged(&actor.UserID, e, venue, generated)
		return s.repo.Enqueue(ctx, tx, "event", e.ID, messages.EventUpdated, msg)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

// moveInventory checks that e may move to venueID and drops its current
// inventory. The caller generates the new one once the event row points at
// the new venue.
func (s *Service) moveInventory(ctx context.Context, tx pgx.Tx, actor domain.Actor, e *domain.Event, venueID uuid.UUID) (domain.Venue, error) {
	venue, err := s.repo.GetVenueForUpdate(ctx, tx, venueID)
	if err != nil {
		return domain.Venue{}, err
	}
	if err := domain.Authorize(actor, domain.ActionManageVenue, domain.Resource{OwnerID: venue.AdminID}); err != nil {
		return domain.Venue{}, err
	}
	if err := domain.CheckVenueIntegrity(venue); err != nil {
		return domain.Venue{}, err
	}
	engaged, err := s.repo.CountTicketsInStatus(ctx, tx, e.ID, domain.StatusReserved, domain.StatusSold, domain.StatusUsed)
	if err != nil {
		return domain.Venue{}, err
	}
	if engaged > 0 {
		return domain.Venue{}, domain.Conflictf("event %s has %d reserved or sold tickets; the venue cannot change", e.ID, engaged)
	}
	if _, err := domain.ValidateTicketTypes(venue, e.TicketTypes); err != nil {
		return domain.Venue{}, err
	}
	if err := s.repo.DeleteEventTickets(ctx, tx, e.ID); err != nil {
		return domain.Venue{}, err
	}
	e.VenueID = venue.ID
	return venue, nil
}

// DeleteEvent removes an event and its inventory while none of its tickets
// is reserved, sold or used.
func (s *Service) DeleteEvent(ctx context.Context, actor domain.Actor, id uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "service.DeleteEvent")
	defer func() { observability.EndSpan(span, err) }()

	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		e, err := s.repo.GetEventForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionManageEvent, domain.Resource{OwnerID: e.AdminID}); err != nil {
			return err
		}
		engaged, err := s.repo.CountTicketsInStatus(ctx, tx, id, domain.StatusReserved, domain.StatusSold, domain.StatusUsed)
		if err != nil {
			return err
		}
		if engaged > 0 {
			return domain.Conflictf("event %s has %d reserved or sold tickets", id, engaged)
		}
		if err := s.repo.DeleteEvent(ctx, tx, id); err != nil {
			return err
		}
		msg := messages.EventDeletedPayload{Header: messages.NewHeader(&actor.UserID), EventID: id}
		return s.repo.Enqueue(ctx, tx, "event", id, messages.EventDeleted, msg)
	})
}

func (s *Service) SeatMap(ctx context.Context, eventID uuid.UUID) ([]domain.SeatView, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.SeatMap(ctx, eventID)
}

// EventTickets lists the tickets of an event for its owning admin.
func (s *Service) EventTickets(ctx context.Context, actor domain.Actor, eventID uuid.UUID, status *domain.TicketStatus, limit, offset int) ([]crdb.TicketRow, error) {
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(actor, domain.ActionManageEvent, domain.Resource{OwnerID: e.AdminID}); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, domain.Invalid("status", "unknown ticket status %q", *status)
	}
	return s.repo.ListEventTickets(ctx, eventID, status, limit, offset)
}
