package qr_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/venue-ticketing/internal/domain"
	"github.com/robertarktes/venue-ticketing/internal/qr"
)

func soldTicket() domain.Ticket {
	section, seat := "VIP", "VIP-7"
	return domain.Ticket{
		ID:          uuid.New(),
		EventID:     uuid.New(),
		VenueID:     uuid.New(),
		TicketType:  "VIP",
		SectionName: &section,
		SeatNumber:  &seat,
		SeatNo:      7,
		Price:       decimal.NewFromInt(150),
	}
}

func TestSigner_IssueAndVerify(t *testing.T) {
	signer := qr.NewSigner("secret")
	ticket := soldTicket()
	attendee := uuid.New()
	now := time.Now()

	token, err := signer.Issue(ticket, attendee, now)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, claims.TicketID)
	assert.Equal(t, ticket.EventID, claims.EventID)
	assert.Equal(t, attendee, claims.AttendeeID)
	assert.Equal(t, "VIP-7", claims.Seat)
	assert.True(t, claims.Price.Equal(decimal.NewFromInt(150)))
}

func TestSigner_TokensDifferPerSale(t *testing.T) {
	signer := qr.NewSigner("secret")
	ticket := soldTicket()
	now := time.Now()

	first, err := signer.Issue(ticket, uuid.New(), now)
	require.NoError(t, err)
	second, err := signer.Issue(ticket, uuid.New(), now)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSigner_Rejections(t *testing.T) {
	signer := qr.NewSigner("secret")
	now := time.Now()
	token, err := signer.Issue(soldTicket(), uuid.New(), now)
	require.NoError(t, err)

	tests := []struct {
		name   string
		signer *qr.Signer
		token  string
	}{
		{"forged", qr.NewSigner("other"), token},
		{"garbage", signer, "not-a-token"},
		{"tampered", signer, token + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.signer.Verify(tt.token)
			var rej *domain.QRRejection
			require.True(t, errors.As(err, &rej), "got %v", err)
			assert.Equal(t, domain.QRInvalid, rej.Reason)
		})
	}
}

// Event dates can move after a sale, so an old token keeps verifying and the
// end time is left to the stored event.
func TestSigner_TokenHasNoExpiry(t *testing.T) {
	signer := qr.NewSigner("secret")
	purchased := time.Now().Add(-400 * 24 * time.Hour)

	token, err := signer.Issue(soldTicket(), uuid.New(), purchased)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
	assert.Equal(t, purchased.Unix(), claims.IssuedAt.Unix())
}

func TestPNG(t *testing.T) {
	png, err := qr.PNG("payload", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
