package validation

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ValidationTestSuite struct {
	suite.Suite
	validator *validator.Validate
}

func TestValidationTestSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}

func (s *ValidationTestSuite) SetupTest() {
	s.validator = validator.New()
	s.Require().NoError(Install(s.validator))
}

func (s *ValidationTestSuite) TestRoomKey() {
	type payload struct {
		RoomKey string `validate:"roomkey"`
	}

	for _, ok := range []string{
		"r", "room123", "My-Room_1", "lobby.main:2",
		"Friday night / table #2", "salle n°3", strings.Repeat("k", 256),
	} {
		s.NoError(s.validator.Struct(payload{RoomKey: ok}), ok)
	}
	for _, bad := range []string{"", "   ", "\xff\xfe", strings.Repeat("k", 257)} {
		s.Error(s.validator.Struct(payload{RoomKey: bad}), bad)
	}
}

func (s *ValidationTestSuite) TestRole() {
	type payload struct {
		Role string `validate:"role"`
	}

	for _, ok := range []string{"A", "B", "spectator"} {
		s.NoError(s.validator.Struct(payload{Role: ok}), ok)
	}
	for _, bad := range []string{"", "a", "C", "Spectator", "host"} {
		s.Error(s.validator.Struct(payload{Role: bad}), bad)
	}
}

func (s *ValidationTestSuite) TestPeerName() {
	type payload struct {
		Name string `validate:"peername"`
	}

	s.NoError(s.validator.Struct(payload{Name: ""}))
	s.NoError(s.validator.Struct(payload{Name: "alice"}))
	s.NoError(s.validator.Struct(payload{Name: "Alice & Bob, table #2 " + strings.Repeat("x", 50)}))
	s.NoError(s.validator.Struct(payload{Name: strings.Repeat("é", 256)}))
	s.Error(s.validator.Struct(payload{Name: strings.Repeat("x", 257)}))
}

func (s *ValidationTestSuite) TestGinInstalled() {
	s.NoError(InstallGin())
}

func (s *ValidationTestSuite) TestFields() {
	type payload struct {
		RoomKey string `validate:"required,roomkey"`
		Role    string `validate:"required,role"`
	}

	fields := Fields(s.validator.Struct(payload{RoomKey: " ", Role: "host"}))
	s.Require().Len(fields, 2)
	s.Equal("RoomKey", fields[0].Field)
	s.Equal("Role", fields[1].Field)
	for _, f := range fields {
		s.NotEmpty(f.Message)
	}
}

func (s *ValidationTestSuite) TestFieldsOtherErrors() {
	s.Empty(Fields(assert.AnError))
	s.Empty(Fields(nil))
}
