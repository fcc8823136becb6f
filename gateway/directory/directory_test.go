package directory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/redis"
	streamredis "github.com/boardbeam/backend/internal/stream/redis"
)

type DirectoryTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *goredis.Client
	dir     *Directory
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func TestDirectoryTestSuite(t *testing.T) {
	suite.Run(t, new(DirectoryTestSuite))
}

func (s *DirectoryTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Config{Addr: s.mr.Addr()})
	forever := redis.NewForever(s.client, time.Millisecond, 10*time.Millisecond, log.NewTest(s.T()))
	s.dir = New(forever, &Config{Enabled: true, Prefix: "test"}, log.NewTest(s.T()))
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *DirectoryTestSuite) TearDownTest() {
	s.cancel()
	if s.started {
		<-s.dir.Done()
	}
	_ = s.client.Close()
}

func (s *DirectoryTestSuite) start() {
	s.Require().NoError(s.dir.Start(s.ctx))
	s.started = true
}

func (s *DirectoryTestSuite) TestStartClearsStaleEntries() {
	s.mr.HSet("test:rooms", "old", `{"seatAOccupied":true}`)
	s.start()
	s.False(s.mr.Exists("test:rooms"))
}

func (s *DirectoryTestSuite) TestRoomChangedIsMirrored() {
	s.start()
	s.dir.RoomChanged("r1", gateway.PublicRoomState{SeatAOccupied: true, SpectatorCount: 2})

	s.Eventually(func() bool {
		return s.mr.HGet("test:rooms", "r1") != ""
	}, time.Second, 5*time.Millisecond)
	s.JSONEq(`{"seatAOccupied":true,"seatBOccupied":false,"spectatorCount":2}`, s.mr.HGet("test:rooms", "r1"))

	rooms, err := s.dir.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]gateway.PublicRoomState{"r1": {SeatAOccupied: true, SpectatorCount: 2}}, rooms)
}

func (s *DirectoryTestSuite) TestRoomRemovedDeletesEntry() {
	s.start()
	s.dir.RoomChanged("r1", gateway.PublicRoomState{SeatBOccupied: true})
	s.dir.RoomChanged("r2", gateway.PublicRoomState{SpectatorCount: 1})
	s.Eventually(func() bool {
		rooms, err := s.dir.List(s.ctx)
		return err == nil && len(rooms) == 2
	}, time.Second, 5*time.Millisecond)

	s.dir.RoomRemoved("r1")
	s.Eventually(func() bool {
		rooms, err := s.dir.List(s.ctx)
		_, ok := rooms["r1"]
		return err == nil && !ok && len(rooms) == 1
	}, time.Second, 5*time.Millisecond)
}

func (s *DirectoryTestSuite) TestUpdatesCoalescePerRoom() {
	// queued before the writer runs, only the latest state per room survives
	s.dir.RoomChanged("r1", gateway.PublicRoomState{SeatAOccupied: true})
	s.dir.RoomChanged("r1", gateway.PublicRoomState{SeatAOccupied: true, SeatBOccupied: true})
	s.dir.RoomChanged("r2", gateway.PublicRoomState{SpectatorCount: 1})
	s.dir.RoomRemoved("r2")
	s.Len(s.dir.pending, 2)
	s.Nil(s.dir.pending["r2"])

	s.start()
	s.Eventually(func() bool {
		rooms, err := s.dir.List(s.ctx)
		return err == nil && rooms["r1"].SeatBOccupied && len(rooms) == 1
	}, time.Second, 5*time.Millisecond)
}

func (s *DirectoryTestSuite) TestListSkipsUndecodableEntries() {
	s.start()
	s.mr.HSet("test:rooms", "bad", "not-json")
	s.mr.HSet("test:rooms", "good", `{"spectatorCount":3}`)

	rooms, err := s.dir.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]gateway.PublicRoomState{"good": {SpectatorCount: 3}}, rooms)
}

func (s *DirectoryTestSuite) TestStopClearsDirectory() {
	s.start()
	s.dir.RoomChanged("r1", gateway.PublicRoomState{SeatAOccupied: true})
	s.Eventually(func() bool {
		return s.mr.Exists("test:rooms")
	}, time.Second, 5*time.Millisecond)

	s.cancel()
	<-s.dir.Done()
	s.False(s.mr.Exists("test:rooms"))
}

func (s *DirectoryTestSuite) TestChangesAppendedToEventStream() {
	cfg := &Config{Enabled: true, Prefix: "test", EventsMaxLen: 100}
	events, err := streamredis.NewProducer(s.client, cfg.EventsStream(), cfg.EventsMaxLen, log.NewTest(s.T()))
	s.Require().NoError(err)
	forever := redis.NewForever(s.client, time.Millisecond, 10*time.Millisecond, log.NewTest(s.T()))
	s.dir = New(forever, cfg, log.NewTest(s.T()), WithEvents(events))
	s.start()

	s.dir.RoomChanged("r1", gateway.PublicRoomState{SeatAOccupied: true})
	s.Eventually(func() bool {
		n, err := s.client.XLen(s.ctx, "test:room-events").Result()
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
	s.dir.RoomRemoved("r1")
	s.Eventually(func() bool {
		n, err := s.client.XLen(s.ctx, "test:room-events").Result()
		return err == nil && n == 2
	}, time.Second, 5*time.Millisecond)

	entries, err := s.client.XRange(s.ctx, "test:room-events", "-", "+").Result()
	s.Require().NoError(err)
	s.Equal("r1", entries[0].Values["room"])
	s.Equal("set", entries[0].Values["op"])
	s.JSONEq(`{"seatAOccupied":true,"seatBOccupied":false,"spectatorCount":0}`, entries[0].Values["state"].(string))
	s.Equal("del", entries[1].Values["op"])
	s.NotContains(entries[1].Values, "state")
}
