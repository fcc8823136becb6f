package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boardbeam/backend/internal/constants"
)

// TicketAuth issues and checks room tickets.
type TicketAuth interface {
	Issue(roomKey string, role constants.Role, ttl time.Duration) (string, error)
	Verify(token string) (*Ticket, error)
}

// Ticket admits its bearer to one room, optionally to a single role.
type Ticket struct {
	RoomKey string         `json:"roomKey"`
	Role    constants.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Allows reports whether the ticket covers a join of role into roomKey.
func (t *Ticket) Allows(roomKey string, role constants.Role) bool {
	if t.RoomKey != roomKey {
		return false
	}
	return t.Role == "" || t.Role == role
}
