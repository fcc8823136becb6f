package jwt

import "github.com/boardbeam/backend/internal/errors"

const (
	ErrInvalidTicket errors.Code = "invalid_ticket"
	ErrInvalidToken  errors.Code = "invalid_token"
	ErrNoToken       errors.Code = "no_token"
)
