package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/boardbeam/backend/internal/constants"
)

type TicketSuite struct {
	suite.Suite
	auth   TicketAuth
	secret string
}

func TestTicketSuite(t *testing.T) {
	suite.Run(t, new(TicketSuite))
}

func (s *TicketSuite) SetupTest() {
	s.secret = "test-secret"
	s.auth = NewTicketAuth(s.secret)
}

func (s *TicketSuite) TestIssueAndVerify() {
	token, err := s.auth.Issue("r1", constants.RoleA, time.Minute)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(token, "eyJ"))

	ticket, err := s.auth.Verify(token)
	s.Require().NoError(err)
	s.Equal("r1", ticket.RoomKey)
	s.Equal(constants.RoleA, ticket.Role)
	s.NotNil(ticket.ExpiresAt)
}

func (s *TicketSuite) TestIssueRejectsBadInput() {
	_, err := s.auth.Issue("", constants.RoleA, 0)
	s.Require().ErrorIs(err, ErrInvalidTicket)

	_, err = s.auth.Issue("r1", constants.Role("host"), 0)
	s.Require().ErrorIs(err, ErrInvalidTicket)
}

func (s *TicketSuite) TestAllows() {
	open := &Ticket{RoomKey: "r1"}
	s.True(open.Allows("r1", constants.RoleA))
	s.True(open.Allows("r1", constants.RoleSpectator))
	s.False(open.Allows("r2", constants.RoleA))

	seat := &Ticket{RoomKey: "r1", Role: constants.RoleB}
	s.True(seat.Allows("r1", constants.RoleB))
	s.False(seat.Allows("r1", constants.RoleA))
}

func (s *TicketSuite) TestVerifyRejects() {
	cases := map[string]string{
		"malformed": "invalid-token",
		"truncated": "eyJ.invalid.token",
	}
	for name, token := range cases {
		s.Run(name, func() {
			ticket, err := s.auth.Verify(token)
			s.Require().ErrorIs(err, ErrInvalidToken)
			s.Nil(ticket)
		})
	}

	ticket, err := s.auth.Verify("")
	s.Require().ErrorIs(err, ErrNoToken)
	s.Nil(ticket)
}

func (s *TicketSuite) TestWrongSecret() {
	token, err := s.auth.Issue("r1", "", 0)
	s.Require().NoError(err)

	_, err = NewTicketAuth("wrong-secret").Verify(token)
	s.Require().ErrorIs(err, ErrInvalidToken)
}

func (s *TicketSuite) TestAlgorithmMismatch() {
	token, err := NewTicketAuthWithAlgorithm(s.secret, jwt.SigningMethodHS512).Issue("r1", "", 0)
	s.Require().NoError(err)

	_, err = s.auth.Verify(token)
	s.Require().ErrorIs(err, ErrInvalidToken)
	s.Contains(err.Error(), "HS512")
}

func (s *TicketSuite) TestExpired() {
	auth := NewTicketAuth(s.secret).(*ticketAuthImpl)
	token, err := auth.Issue("r1", "", time.Minute)
	s.Require().NoError(err)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = auth.Verify(token)
	s.Require().ErrorIs(err, ErrInvalidToken)
}

func (s *TicketSuite) TestMissingRoom() {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Ticket{}).SignedString([]byte(s.secret))
	s.Require().NoError(err)

	_, err = s.auth.Verify(token)
	s.Require().ErrorIs(err, ErrInvalidToken)
	s.Contains(err.Error(), "no room")
}
