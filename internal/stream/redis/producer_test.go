package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

type ProducerTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	ctx    context.Context
}

func TestProducerTestSuite(t *testing.T) {
	suite.Run(t, new(ProducerTestSuite))
}

func (s *ProducerTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.ctx = context.Background()
}

func (s *ProducerTestSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *ProducerTestSuite) TestRequiresClientAndStream() {
	_, err := NewProducer(nil, "events", 0, log.NewNop())
	s.True(errors.Is(err, ErrAppend))

	_, err = NewProducer(s.client, "", 0, log.NewNop())
	s.True(errors.Is(err, ErrAppend))
}

func (s *ProducerTestSuite) TestAddAppendsEntry() {
	p, err := NewProducer(s.client, "events", 0, log.NewTest(s.T()))
	s.Require().NoError(err)
	s.Equal("events", p.Stream())

	id, err := p.Add(s.ctx, map[string]any{"room": "r1", "op": "set"})
	s.Require().NoError(err)
	s.NotEmpty(id)

	entries, err := s.client.XRange(s.ctx, "events", "-", "+").Result()
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(id, entries[0].ID)
	s.Equal("r1", entries[0].Values["room"])
	s.Equal("set", entries[0].Values["op"])
}

func (s *ProducerTestSuite) TestAddKeepsOrder() {
	p, err := NewProducer(s.client, "events", 0, log.NewNop())
	s.Require().NoError(err)

	first, err := p.Add(s.ctx, map[string]any{"n": "1"})
	s.Require().NoError(err)
	second, err := p.Add(s.ctx, map[string]any{"n": "2"})
	s.Require().NoError(err)

	entries, err := s.client.XRange(s.ctx, "events", "-", "+").Result()
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first, entries[0].ID)
	s.Equal(second, entries[1].ID)
}

func (s *ProducerTestSuite) TestAddFailsWhenRedisIsDown() {
	p, err := NewProducer(s.client, "events", 10, log.NewNop())
	s.Require().NoError(err)

	s.mr.Close()
	_, err = p.Add(s.ctx, map[string]any{"n": "1"})
	s.Require().Error(err)
	s.True(errors.Is(err, ErrAppend))
}
