package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
)

// NewTicketAuth signs tickets with HS256.
func NewTicketAuth(secret string) TicketAuth {
	return NewTicketAuthWithAlgorithm(secret, jwt.SigningMethodHS256)
}

// NewTicketAuthWithAlgorithm accepts HS256, HS384 or HS512. Only tokens
// signed with the same algorithm verify.
func NewTicketAuthWithAlgorithm(secret string, method jwt.SigningMethod) TicketAuth {
	return &ticketAuthImpl{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}
}

type ticketAuthImpl struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// Issue signs a ticket for roomKey. An empty role admits any role, a zero
// ttl never expires.
func (a *ticketAuthImpl) Issue(roomKey string, role constants.Role, ttl time.Duration) (string, error) {
	if roomKey == "" {
		return "", errors.New(ErrInvalidTicket, "room key is required")
	}
	if role != "" && !role.Valid() {
		return "", errors.Newf(ErrInvalidTicket, "unknown role %q", role)
	}

	now := a.now()
	ticket := &Ticket{
		RoomKey: roomKey,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		ticket.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(a.method, ticket).SignedString(a.secret)
}

func (a *ticketAuthImpl) Verify(token string) (*Ticket, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Ticket{}, func(t *jwt.Token) (any, error) {
		if alg := t.Method.Alg(); alg != a.method.Alg() {
			return nil, errors.Newf(ErrInvalidToken,
				"unexpected signing method: %s (expected: %s)", alg, a.method.Alg())
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err, "parse ticket")
	}

	ticket, ok := parsed.Claims.(*Ticket)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if ticket.RoomKey == "" {
		return nil, errors.New(ErrInvalidToken, "ticket has no room")
	}
	return ticket, nil
}
