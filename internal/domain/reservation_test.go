package domain_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

func TestNewHold(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := domain.NewHold(uuid.New(), uuid.New(), now, 5*time.Minute)
	assert.NotEqual(t, uuid.Nil, h.ID)
	assert.Equal(t, now.Add(5*time.Minute), h.ExpiresAt)
}

func TestSelectionNormalize(t *testing.T) {
	sel, err := domain.Selection{Seats: []string{"A-1", "A-2", "A-1"}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1", "A-2"}, sel.Seats)

	id := uuid.New()
	sel, err = domain.Selection{TicketIDs: []uuid.UUID{id, id}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, sel.TicketIDs)

	bad := []domain.Selection{
		{},
		{Seats: []string{"A-1"}, TicketIDs: []uuid.UUID{id}},
		{Seats: []string{""}},
		{TicketIDs: []uuid.UUID{uuid.Nil}},
		{Seats: make([]string, domain.MaxUnitsPerHold+1)},
	}
	for _, s := range bad {
		_, err := s.Normalize()
		assert.True(t, errors.Is(err, domain.ErrValidation), "%+v", s)
	}
}
