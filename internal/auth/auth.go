// Package auth turns bearer credentials into domain actors.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Claims struct {
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens issued by the identity provider.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Authenticate parses an Authorization header value of the form "Bearer <jwt>".
func (a *Authenticator) Authenticate(header string) (domain.Actor, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return domain.Actor{}, errors.Mark(errors.New("missing bearer token"), ErrUnauthenticated)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return domain.Actor{}, errors.Mark(errors.Wrap(err, "parse bearer token"), ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, errors.Mark(errors.Wrap(err, "token subject"), ErrUnauthenticated)
	}
	switch claims.Role {
	case domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleAttendee:
	default:
		return domain.Actor{}, errors.Mark(errors.Newf("unknown role %q", claims.Role), ErrUnauthenticated)
	}
	return domain.Actor{UserID: userID, Role: claims.Role, Email: claims.Email}, nil
}

// Issuer mints bearer tokens. It backs admin provisioning and local tooling.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Issue(actor domain.Actor, now time.Time) (string, time.Time, error) {
	expires := now.Add(i.ttl)
	claims := Claims{
		Role:  actor.Role,
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign bearer token")
	}
	return token, expires, nil
}

type actorKey struct{}

func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}
