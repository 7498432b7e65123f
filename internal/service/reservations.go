package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/messages"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

// Reserve places a hold for actor on every unit named by sel. Either all of
// them move from available to reserved or the request fails with none changed.
func (s *Service) Reserve(ctx context.Context, actor domain.Actor, eventID uuid.UUID, sel domain.Selection) (hold domain.Hold, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Reserve")
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.Authorize(actor, domain.ActionBuyTicket, domain.Resource{}); err != nil {
		return domain.Hold{}, err
	}
	if sel, err = sel.Normalize(); err != nil {
		return domain.Hold{}, err
	}
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Hold{}, err
	}
	if e.Ended(s.clock()) {
		return domain.Hold{}, domain.Conflictf("event %s has ended", eventID)
	}

	err = s.ticketTx(ctx, domain.ReasonReserve, func(tx pgx.Tx) error {
		rows, err := s.repo.LockSelection(ctx, tx, eventID, sel)
		if err != nil {
			return err
		}
		if len(rows) != sel.Len() {
			return domain.NotFoundf("unknown units for event %s: %s", eventID, strings.Join(missing(sel, rows), ", "))
		}
		var unavailable []string
		for _, row := range rows {
			if row.Status != domain.StatusAvailable || row.SeatStatus == domain.SeatUnavailable {
				unavailable = append(unavailable, unitName(row))
			}
		}
		if len(unavailable) > 0 {
			return domain.Conflictf("not available: %s", strings.Join(unavailable, ", "))
		}

		now := s.clock()
		hold = domain.NewHold(eventID, actor.UserID, now, s.holdTTL)
		hold.TicketIDs = ids(rows)
		if err := s.repo.InsertHold(ctx, tx, hold); err != nil {
			return err
		}
		n, err := s.repo.ReserveTickets(ctx, tx, hold, hold.TicketIDs, now)
		if err != nil {
			return err
		}
		if n != len(hold.TicketIDs) {
			return domain.Conflictf("only %d of %d units could be reserved", n, len(hold.TicketIDs))
		}
		if err := s.repo.InsertHistory(ctx, tx, history(hold.TicketIDs, domain.ReasonReserve, &actor.UserID, now)...); err != nil {
			return err
		}
		return s.enqueueHold(ctx, tx, &actor.UserID, messages.HoldCreated, hold)
	})
	if err != nil {
		return domain.Hold{}, err
	}
	s.log(ctx).WithField("hold_id", hold.ID).WithField("units", len(hold.TicketIDs)).Info("hold created")
	return hold, nil
}

// Release returns the units of sel that actor holds to available and reports
// which ones moved. Units in any other state, or held by someone else, are
// left alone, so releasing twice is harmless. A superadmin may release any hold.
func (s *Service) Release(ctx context.Context, actor domain.Actor, eventID uuid.UUID, sel domain.Selection) (released []uuid.UUID, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Release")
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.Authorize(actor, domain.ActionBuyTicket, domain.Resource{}); err != nil {
		return nil, err
	}
	if sel, err = sel.Normalize(); err != nil {
		return nil, err
	}

	err = s.ticketTx(ctx, domain.ReasonRelease, func(tx pgx.Tx) error {
		rows, err := s.repo.LockSelection(ctx, tx, eventID, sel)
		if err != nil {
			return err
		}
		holder := &actor.UserID
		if actor.Role == domain.RoleSuperAdmin {
			holder = nil
		}
		now := s.clock()
		released, err = s.repo.ReleaseTickets(ctx, tx, ids(rows), holder, now)
		if err != nil || len(released) == 0 {
			return err
		}

		if err := s.repo.InsertHistory(ctx, tx, history(released, domain.ReasonRelease, &actor.UserID, now)...); err != nil {
			return err
		}
		for holdID, hold := range affectedHolds(rows, released) {
			if _, err := s.repo.CloseHold(ctx, tx, holdID, domain.HoldReleased); err != nil {
				return err
			}
			if err := s.enqueueHold(ctx, tx, &actor.UserID, messages.HoldReleased, hold); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// ExpireHolds releases up to limit holds whose expiry has passed at now and
// returns how many it expired. Each hold is handled in its own transaction.
func (s *Service) ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	holds, err := s.repo.GetExpiredHolds(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, hold := range holds {
		var closed bool
		err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
			released, err := s.repo.ReleaseHoldTickets(ctx, tx, hold.ID, now)
			if err != nil {
				return err
			}
			closed, err = s.repo.ExpireHold(ctx, tx, hold.ID)
			if err != nil || !closed {
				return err
			}
			if err := s.repo.InsertHistory(ctx, tx, history(released, domain.ReasonExpire, nil, now)...); err != nil {
				return err
			}
			hold.TicketIDs = released
			return s.enqueueHold(ctx, tx, nil, messages.HoldExpired, hold)
		})
		if err != nil {
			s.log(ctx).WithError(err).WithField("hold_id", hold.ID).Error("failed to expire hold")
			continue
		}
		if !closed {
			continue
		}
		expired++
		observability.HoldsExpired.Inc()
	}
	return expired, nil
}

func (s *Service) enqueueHold(ctx context.Context, tx pgx.Tx, actor *uuid.UUID, key string, hold domain.Hold) error {
	msg := messages.HoldChanged{
		Header:    messages.NewHeader(actor),
		HoldID:    hold.ID,
		EventID:   hold.EventID,
		UserID:    hold.UserID,
		TicketIDs: hold.TicketIDs,
		ExpiresAt: hold.ExpiresAt,
	}
	return s.repo.Enqueue(ctx, tx, "hold", hold.ID, key, msg)
}

func history(ticketIDs []uuid.UUID, reason domain.Reason, actor *uuid.UUID, at time.Time) []domain.HistoryEntry {
	from, to := reason.Edge()
	entries := make([]domain.HistoryEntry, len(ticketIDs))
	for i, id := range ticketIDs {
		entries[i] = domain.HistoryEntry{TicketID: id, From: from, To: to, Reason: reason, ActorID: actor, At: at}
	}
	return entries
}

// affectedHolds groups the released units by the hold they belonged to.
func affectedHolds(rows []crdb.TicketRow, released []uuid.UUID) map[uuid.UUID]domain.Hold {
	moved := make(map[uuid.UUID]struct{}, len(released))
	for _, id := range released {
		moved[id] = struct{}{}
	}
	holds := make(map[uuid.UUID]domain.Hold)
	for _, row := range rows {
		if _, ok := moved[row.ID]; !ok || row.HoldID == nil {
			continue
		}
		h := holds[*row.HoldID]
		h.ID, h.EventID = *row.HoldID, row.EventID
		if row.HolderID != nil {
			h.UserID = *row.HolderID
		}
		if row.ReservedUntil != nil {
			h.ExpiresAt = *row.ReservedUntil
		}
		h.TicketIDs = append(h.TicketIDs, row.ID)
		holds[*row.HoldID] = h
	}
	return holds
}

func ids(rows []crdb.TicketRow) []uuid.UUID {
	out := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		out[i] = row.ID
	}
	return out
}

func unitName(row crdb.TicketRow) string {
	if row.SeatNumber != nil {
		return *row.SeatNumber
	}
	return row.ID.String()
}

// missing lists the entries of sel with no matching row.
func missing(sel domain.Selection, rows []crdb.TicketRow) []string {
	found := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		found[row.ID.String()] = struct{}{}
		if row.SeatNumber != nil {
			found[*row.SeatNumber] = struct{}{}
		}
	}
	var out []string
	for _, label := range sel.Seats {
		if _, ok := found[label]; !ok {
			out = append(out, label)
		}
	}
	for _, id := range sel.TicketIDs {
		if _, ok := found[id.String()]; !ok {
			out = append(out, id.String())
		}
	}
	return out
}
