package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/messages"
	"github.com/robertarktes/venue-ticketing/internal/observability"
	"github.com/robertarktes/venue-ticketing/internal/qr"
)

const qrImageSize = 256

// transition moves row to status to, provided it still holds the status it
// was read with. change fills in the fields the move sets or clears. The
// history entry and outbox message are written in the same tx.
func (s *Service) transition(ctx context.Context, tx pgx.Tx, actor domain.Actor, row crdb.TicketRow, to domain.TicketStatus, reason domain.Reason, change func(t *domain.Ticket)) (domain.Ticket, error) {
	from := row.Status
	if !domain.CanTransition(from, to) {
		return domain.Ticket{}, domain.TransitionConflict(row.ID.String(), reason, from)
	}

	now := s.clock()
	t := row.Ticket
	t.Status = to
	t.UpdatedAt = now
	change(&t)

	ok, err := s.repo.UpdateTicket(ctx, tx, t, from)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ok {
		return domain.Ticket{}, domain.TransitionConflict(row.ID.String(), reason, "")
	}

	attendee := t.AttendeeID
	if attendee == nil {
		attendee = row.AttendeeID
	}
	err = s.repo.InsertHistory(ctx, tx, domain.HistoryEntry{
		TicketID:   t.ID,
		From:       from,
		To:         to,
		Reason:     reason,
		ActorID:    &actor.UserID,
		AttendeeID: attendee,
		At:         now,
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	email := t.AttendeeEmail
	if email == nil {
		email = row.AttendeeEmail
	}
	msg := messages.NewTicketChanged(actor, t, from, reason, attendee, deref(email))
	msg.EventTitle = row.EventTitle
	if err := s.repo.Enqueue(ctx, tx, "ticket", t.ID, messages.RoutingKey(reason), msg); err != nil {
		return domain.Ticket{}, err
	}
	return t, nil
}

// ticketTx runs fn in a transaction and counts the outcome of the transition.
func (s *Service) ticketTx(ctx context.Context, reason domain.Reason, fn func(tx pgx.Tx) error) error {
	err := s.repo.WithTx(ctx, fn)
	switch {
	case err == nil:
		observability.TicketTransitions.WithLabelValues(string(reason)).Inc()
	case errors.Is(err, domain.ErrConflict):
		observability.TransitionConflicts.WithLabelValues(string(reason)).Inc()
	}
	return err
}

// sellable rejects rows that cannot be sold to actor right now. Reserved
// rows may only be bought by their holder while the hold is live.
func (s *Service) sellable(row crdb.TicketRow, actor domain.Actor) error {
	now := s.clock()
	if !now.Before(row.EventEndsAt) {
		return domain.Conflictf("event %s has ended", row.EventID)
	}
	if row.SeatStatus == domain.SeatUnavailable {
		return domain.Conflictf("seat %s is unavailable", deref(row.SeatNumber))
	}
	if row.Status == domain.StatusReserved {
		if row.HolderID == nil || *row.HolderID != actor.UserID {
			return domain.Conflictf("ticket %s is reserved by another attendee", row.ID)
		}
		if row.ReservedUntil != nil && !now.Before(*row.ReservedUntil) {
			return domain.Conflictf("hold on ticket %s has expired", row.ID)
		}
	}
	return nil
}

func (s *Service) sell(ctx context.Context, tx pgx.Tx, actor domain.Actor, row crdb.TicketRow) (domain.Ticket, error) {
	if err := s.sellable(row, actor); err != nil {
		return domain.Ticket{}, err
	}
	now := s.clock()
	token, err := s.signer.Issue(row.Ticket, actor.UserID, now)
	if err != nil {
		return domain.Ticket{}, err
	}
	t, err := s.transition(ctx, tx, actor, row, domain.StatusSold, domain.ReasonPurchase, func(t *domain.Ticket) {
		t.AttendeeID = &actor.UserID
		t.AttendeeEmail = nil
		if actor.Email != "" {
			t.AttendeeEmail = &actor.Email
		}
		t.QRToken = &token
		t.PurchasedAt = &now
		t.HoldID, t.HolderID, t.ReservedUntil = nil, nil, nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	if row.HoldID != nil {
		if _, err := s.repo.CloseHold(ctx, tx, *row.HoldID, domain.HoldConverted); err != nil {
			return domain.Ticket{}, err
		}
	}
	return t, nil
}

// Purchase sells the ticket with the given id to actor. An available ticket
// is sold directly; a reserved one only to the holder of the reservation.
func (s *Service) Purchase(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Purchase")
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.Authorize(actor, domain.ActionBuyTicket, domain.Resource{}); err != nil {
		return domain.Ticket{}, err
	}
	err = s.ticketTx(ctx, domain.ReasonPurchase, func(tx pgx.Tx) error {
		row, err := s.repo.LockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		t, err = s.sell(ctx, tx, actor, row)
		return err
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.log(ctx).WithField("ticket_id", t.ID).WithField("attendee_id", actor.UserID).Info("ticket sold")
	return t, nil
}

// PurchaseByType sells the first available ticket of a type within an event.
func (s *Service) PurchaseByType(ctx context.Context, actor domain.Actor, eventID uuid.UUID, ticketType string) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.PurchaseByType")
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.Authorize(actor, domain.ActionBuyTicket, domain.Resource{}); err != nil {
		return domain.Ticket{}, err
	}
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Ticket{}, err
	}
	known := false
	for _, tt := range e.TicketTypes {
		known = known || tt.Type == ticketType
	}
	if !known {
		return domain.Ticket{}, domain.Invalid("type", "event %s has no ticket type %q", eventID, ticketType)
	}

	err = s.ticketTx(ctx, domain.ReasonPurchase, func(tx pgx.Tx) error {
		row, err := s.repo.LockFirstAvailable(ctx, tx, eventID, ticketType)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Conflictf("%q tickets for event %s are sold out", ticketType, eventID)
		}
		if err != nil {
			return err
		}
		t, err = s.sell(ctx, tx, actor, row)
		return err
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.log(ctx).WithField("ticket_id", t.ID).WithField("attendee_id", actor.UserID).Info("ticket sold")
	return t, nil
}

// returnToSale moves a sold ticket back to available, clearing its attendee
// and token. The history keeps who held it and why it came back.
func (s *Service) returnToSale(ctx context.Context, actor domain.Actor, ticketID uuid.UUID, action domain.Action, reason domain.Reason) (domain.Ticket, error) {
	var t domain.Ticket
	err := s.ticketTx(ctx, reason, func(tx pgx.Tx) error {
		row, err := s.repo.LockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, action, domain.Resource{OwnerID: row.EventAdminID, AttendeeID: row.AttendeeID}); err != nil {
			return err
		}
		if row.Status != domain.StatusSold {
			return domain.TransitionConflict(row.ID.String(), reason, row.Status)
		}
		t, err = s.transition(ctx, tx, actor, row, domain.StatusAvailable, reason, func(t *domain.Ticket) {
			t.AttendeeID, t.AttendeeEmail, t.QRToken, t.PurchasedAt = nil, nil, nil, nil
		})
		return err
	})
	return t, err
}

// Cancel returns a sold ticket to sale at the request of its attendee or the
// event admin. Used tickets cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Cancel")
	defer func() { observability.EndSpan(span, err) }()
	return s.returnToSale(ctx, actor, ticketID, domain.ActionCancelTicket, domain.ReasonCancel)
}

// Refund returns a sold ticket to sale on behalf of the event admin.
func (s *Service) Refund(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Refund")
	defer func() { observability.EndSpan(span, err) }()
	return s.returnToSale(ctx, actor, ticketID, domain.ActionRefundTicket, domain.ReasonRefund)
}

// Withdraw takes an available ticket off sale for good.
func (s *Service) Withdraw(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.Withdraw")
	defer func() { observability.EndSpan(span, err) }()

	err = s.ticketTx(ctx, domain.ReasonWithdraw, func(tx pgx.Tx) error {
		row, err := s.repo.LockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionWithdrawTicket, domain.Resource{OwnerID: row.EventAdminID}); err != nil {
			return err
		}
		t, err = s.transition(ctx, tx, actor, row, domain.StatusCancelled, domain.ReasonWithdraw, func(*domain.Ticket) {})
		return err
	})
	return t, err
}

// CheckIn marks a sold ticket used. Only the event admin may check tickets in.
func (s *Service) CheckIn(ctx context.Context, actor domain.Actor, ticketID uuid.UUID) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.CheckIn")
	defer func() { observability.EndSpan(span, err) }()
	return s.checkIn(ctx, actor, ticketID, nil)
}

// CheckInToken validates a presented token and checks its ticket in.
func (s *Service) CheckInToken(ctx context.Context, actor domain.Actor, token string) (t domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "service.CheckInToken")
	defer func() { observability.EndSpan(span, err) }()

	claims, err := s.signer.Verify(token)
	if err != nil {
		return domain.Ticket{}, err
	}
	return s.checkIn(ctx, actor, claims.TicketID, &token)
}

func (s *Service) checkIn(ctx context.Context, actor domain.Actor, ticketID uuid.UUID, token *string) (domain.Ticket, error) {
	var t domain.Ticket
	err := s.ticketTx(ctx, domain.ReasonCheckIn, func(tx pgx.Tx) error {
		row, err := s.repo.LockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := domain.Authorize(actor, domain.ActionCheckInTicket, domain.Resource{OwnerID: row.EventAdminID}); err != nil {
			return err
		}
		if token != nil && (row.QRToken == nil || *row.QRToken != *token) {
			return &domain.QRRejection{Reason: domain.QRInvalid, Detail: "token has been superseded"}
		}
		if !s.clock().Before(row.EventEndsAt) {
			return &domain.QRRejection{Reason: domain.QRExpired, Detail: "event has ended"}
		}
		t, err = s.transition(ctx, tx, actor, row, domain.StatusUsed, domain.ReasonCheckIn, func(*domain.Ticket) {})
		return err
	})
	return t, err
}

type QRValidation struct {
	Ticket crdb.TicketRow
	Claims *qr.Claims
}

// ValidateQR checks a presented token without changing the ticket. A token
// is accepted only if it is the one currently stored on a sold or used
// ticket of an event that has not ended.
func (s *Service) ValidateQR(ctx context.Context, token string) (v QRValidation, err error) {
	ctx, span := observability.StartSpan(ctx, "service.ValidateQR")
	defer func() { observability.EndSpan(span, err) }()

	claims, err := s.signer.Verify(token)
	if err != nil {
		return QRValidation{}, err
	}
	row, err := s.repo.GetTicket(ctx, claims.TicketID)
	if errors.Is(err, domain.ErrNotFound) {
		return QRValidation{}, &domain.QRRejection{Reason: domain.QRNotFound, Detail: claims.TicketID.String()}
	}
	if err != nil {
		return QRValidation{}, err
	}
	if !row.Status.Owned() {
		return QRValidation{}, &domain.QRRejection{Reason: domain.QRWrongStatus, Detail: string(row.Status)}
	}
	if row.QRToken == nil || *row.QRToken != token {
		return QRValidation{}, &domain.QRRejection{Reason: domain.QRInvalid, Detail: "token has been superseded"}
	}
	if !s.clock().Before(row.EventEndsAt) {
		return QRValidation{}, &domain.QRRejection{Reason: domain.QRExpired, Detail: "event has ended"}
	}
	return QRValidation{Ticket: row, Claims: claims}, nil
}

func (s *Service) GetTicket(ctx context.Context, actor domain.Actor, id uuid.UUID) (crdb.TicketRow, error) {
	row, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return crdb.TicketRow{}, err
	}
	if err := domain.Authorize(actor, domain.ActionViewTicket, domain.Resource{OwnerID: row.EventAdminID, AttendeeID: row.AttendeeID}); err != nil {
		return crdb.TicketRow{}, err
	}
	return row, nil
}

// QRCode renders the stored token of a sold ticket as a PNG.
func (s *Service) QRCode(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]byte, error) {
	row, err := s.GetTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if row.QRToken == nil {
		return nil, domain.Conflictf("ticket %s has no code: status is %s", id, row.Status)
	}
	return qr.PNG(*row.QRToken, qrImageSize)
}

func (s *Service) MyTickets(ctx context.Context, actor domain.Actor) ([]crdb.TicketRow, error) {
	return s.repo.ListAttendeeTickets(ctx, actor.UserID)
}

// TicketHistory lists the applied transitions of a ticket. It is visible to
// the event admin only, since it names every past holder.
func (s *Service) TicketHistory(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.HistoryEntry, error) {
	row, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(actor, domain.ActionManageEvent, domain.Resource{OwnerID: row.EventAdminID}); err != nil {
		return nil, err
	}
	return s.repo.TicketHistory(ctx, id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
