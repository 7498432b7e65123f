// Package qr issues and verifies the signed tokens printed on tickets.
package qr

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

const issuer = "venue-ticketing"

// Claims bind a token to one sale of one ticket.
type Claims struct {
	TicketID   uuid.UUID       `json:"tid"`
	EventID    uuid.UUID       `json:"eid"`
	VenueID    uuid.UUID       `json:"vid"`
	AttendeeID uuid.UUID       `json:"aid"`
	Section    string          `json:"sec,omitempty"`
	Seat       string          `json:"seat,omitempty"`
	Price      decimal.Decimal `json:"price"`
	jwt.RegisteredClaims
}

type Signer struct {
	key []byte
}

func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Issue signs a token for a sold ticket. The token carries no expiry: event
// dates may move after the sale, so the end time is checked against the
// stored event when the token is presented.
func (s *Signer) Issue(t domain.Ticket, attendee uuid.UUID, purchasedAt time.Time) (string, error) {
	claims := Claims{
		TicketID:   t.ID,
		EventID:    t.EventID,
		VenueID:    t.VenueID,
		AttendeeID: attendee,
		Price:      t.Price,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   issuer,
			Subject:  t.ID.String(),
			IssuedAt: jwt.NewNumericDate(purchasedAt),
		},
	}
	if t.SectionName != nil {
		claims.Section = *t.SectionName
	}
	if t.SeatNumber != nil {
		claims.Seat = *t.SeatNumber
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "sign ticket token")
	}
	return token, nil
}

// Verify checks the signature and issuer of token and returns its claims.
// Any failure is a QRInvalid rejection.
func (s *Signer) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, &domain.QRRejection{Reason: domain.QRInvalid, Detail: err.Error()}
	}
	return &claims, nil
}

// PNG renders token as a QR code image of the given size in pixels.
func PNG(token string, size int) ([]byte, error) {
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr code")
	}
	return png, nil
}
