package signal

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/boardbeam/backend/internal/jwt"
)

// sessionContext is the per-connection state shared by every method call.
type sessionContext struct {
	id         string
	remoteAddr string
	reqCtx     context.Context
	limiter    *rate.Limiter
	// nil when tickets are not required
	ticket *jwt.Ticket
}

func (s *sessionContext) ID() string {
	return s.id
}
