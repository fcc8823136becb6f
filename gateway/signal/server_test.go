package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/gateway/registry"
	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/jsonrpc"
	wsrpc "github.com/boardbeam/backend/internal/jsonrpc/websocket"
	"github.com/boardbeam/backend/internal/log"
)

const waitTimeout = 3 * time.Second

type clientState struct{}

type note struct {
	method string
	params json.RawMessage
}

type testClient struct {
	conn  jsonrpc.Conn[clientState]
	notes chan note
	id    string
}

type SignalServerSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	reg    *registry.Registry
	conns  *ConnManager
	http   *httptest.Server
	url    string
}

func TestSignalServerSuite(t *testing.T) {
	suite.Run(t, new(SignalServerSuite))
}

func (s *SignalServerSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	logger := log.NewNop()

	s.conns = NewConnManager(logger.Module("ConnMgr"))
	s.reg = registry.New(&registry.Config{}, s.conns, nil, logger.Module("Registry"))
	s.reg.Start(s.ctx)

	cfg := &Config{SameRoomOnly: true}
	hook := NewWSHook(s.conns, s.reg, cfg, logger.Module("WSHook"))
	wsServer := wsrpc.NewServer(hook, nil, logger.Module("WSRPC"))
	relay := NewRelay(s.reg, s.conns, cfg.SameRoomOnly, logger.Module("Relay"))
	server := NewServer(wsServer, s.reg, relay, logger.Module("Signal"))
	s.Require().NoError(server.Open(s.ctx))

	s.http = httptest.NewServer(http.HandlerFunc(wsServer.HandleWebSocket))
	s.url = "ws" + strings.TrimPrefix(s.http.URL, "http")
}

func (s *SignalServerSuite) TearDownTest() {
	s.conns.CloseAll()
	s.http.Close()
	s.cancel()
	<-s.reg.Done()
}

func (s *SignalServerSuite) connect() *testClient {
	c := &testClient{notes: make(chan note, 256)}
	handler := jsonrpc.NewHandler[clientState](log.NewNop())
	for _, method := range []string{
		constants.NotifyJoined, constants.NotifyPeers, constants.NotifyPeerJoined,
		constants.NotifyPeerLeft, constants.NotifyRoomState, constants.NotifyJoinDenied,
		constants.MethodRTCOffer, constants.MethodRTCAnswer, constants.MethodRTCIce,
	} {
		handler.Def(method, func(_ jsonrpc.MethodContext[clientState], params *json.RawMessage) (any, error) {
			var raw json.RawMessage
			if params != nil {
				raw = *params
			}
			c.notes <- note{method: method, params: raw}
			//nolint:nilnil
			return nil, nil
		})
	}

	ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
	defer cancel()
	conn, err := wsrpc.Dial[clientState](ctx, s.ctx, s.url, handler, &clientState{}, nil, log.NewNop())
	s.Require().NoError(err)
	c.conn = conn
	return c
}

// expect skips notifications until one with the given method arrives.
func (s *SignalServerSuite) expect(c *testClient, method string) json.RawMessage {
	deadline := time.After(waitTimeout)
	for {
		select {
		case n := <-c.notes:
			if n.method == method {
				return n.params
			}
		case <-deadline:
			s.FailNow("notification not received", method)
			return nil
		}
	}
}

// expectNone asserts that no notification with the given method is pending.
func (s *SignalServerSuite) expectNone(c *testClient, method string) {
	for {
		select {
		case n := <-c.notes:
			s.NotEqual(method, n.method)
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func (s *SignalServerSuite) join(c *testClient, room string, role constants.Role, name string) gateway.JoinResult {
	ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
	defer cancel()
	var res gateway.JoinResult
	s.Require().NoError(c.conn.Call(ctx, constants.MethodJoin,
		map[string]any{"roomKey": room, "role": role, "name": name}, &res))
	if res.OK {
		var joined gateway.Joined
		s.Require().NoError(json.Unmarshal(s.expect(c, constants.NotifyJoined), &joined))
		s.Equal(role, joined.Role)
		s.Equal(room, joined.RoomKey)
		c.id = joined.ID
	}
	return res
}

func (s *SignalServerSuite) notify(c *testClient, method string, params any) {
	ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
	defer cancel()
	s.Require().NoError(c.conn.Notify(ctx, method, params))
}

func (s *SignalServerSuite) TestJoinBroadcastsArrival() {
	a := s.connect()
	res := s.join(a, "r1", constants.RoleA, "alice")
	s.Require().True(res.OK)
	s.Equal(&gateway.PublicRoomState{SeatAOccupied: true}, res.State)
	s.JSONEq(`[]`, string(s.expect(a, constants.NotifyPeers)))
	s.JSONEq(`{"seatAOccupied":true,"seatBOccupied":false,"spectatorCount":0}`,
		string(s.expect(a, constants.NotifyRoomState)))

	b := s.connect()
	res = s.join(b, "r1", constants.RoleB, "bob")
	s.Require().True(res.OK)

	var roster []gateway.PeerInfo
	s.Require().NoError(json.Unmarshal(s.expect(b, constants.NotifyPeers), &roster))
	s.Equal([]gateway.PeerInfo{{ID: a.id, Role: constants.RoleA}}, roster)

	// room-state reaches every member before peer-joined
	var state gateway.PublicRoomState
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.NotifyRoomState), &state))
	s.Equal(gateway.PublicRoomState{SeatAOccupied: true, SeatBOccupied: true}, state)

	var arrived gateway.PeerInfo
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.NotifyPeerJoined), &arrived))
	s.Equal(gateway.PeerInfo{ID: b.id, Role: constants.RoleB, Name: "bob"}, arrived)
}

func (s *SignalServerSuite) TestSeatTakenIsDenied() {
	a := s.connect()
	s.Require().True(s.join(a, "r1", constants.RoleA, "").OK)

	c := s.connect()
	res := s.join(c, "r1", constants.RoleA, "")
	s.False(res.OK)
	s.Equal(constants.DenySeatTaken, res.Error)
	s.Nil(res.State)
	s.JSONEq(`{"reason":"seat_taken"}`, string(s.expect(c, constants.NotifyJoinDenied)))
	s.expectNone(a, constants.NotifyPeerJoined)
}

func (s *SignalServerSuite) TestInvalidJoinPayload() {
	c := s.connect()
	for _, params := range []map[string]any{
		{"roomKey": "", "role": "A"},
		{"roomKey": "r1", "role": "host"},
		{"roomKey": "   ", "role": "A"},
		{"roomKey": strings.Repeat("k", 257), "role": "A"},
	} {
		ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
		var res gateway.JoinResult
		s.Require().NoError(c.conn.Call(ctx, constants.MethodJoin, params, &res))
		cancel()
		s.False(res.OK)
		s.Equal(constants.DenyInvalidPayload, res.Error)
		s.JSONEq(`{"reason":"invalid_payload"}`, string(s.expect(c, constants.NotifyJoinDenied)))
	}
}

func (s *SignalServerSuite) TestFreeTextRoomKeyAndName() {
	room := "Friday night / table #2"
	name := "Ann, the host of table #2 " + strings.Repeat("x", 45)

	a := s.connect()
	res := s.join(a, room, constants.RoleA, name)
	s.Require().True(res.OK, "denied with %q", res.Error)

	b := s.connect()
	s.Require().True(s.join(b, room, constants.RoleB, "").OK)
	var joined gateway.PeerInfo
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.NotifyPeerJoined), &joined))
	s.Equal(b.id, joined.ID)
}

func (s *SignalServerSuite) TestOfferIsRelayedWithRole() {
	a := s.connect()
	s.Require().True(s.join(a, "r1", constants.RoleA, "").OK)
	b := s.connect()
	s.Require().True(s.join(b, "r1", constants.RoleB, "").OK)

	sdp := map[string]string{"type": "offer", "sdp": "v=0"}
	s.notify(a, constants.MethodRTCOffer, map[string]any{"to": b.id, "sdp": sdp})

	var msg gateway.SignalMessage
	s.Require().NoError(json.Unmarshal(s.expect(b, constants.MethodRTCOffer), &msg))
	s.Equal(a.id, msg.From)
	s.Equal(constants.RoleA, msg.Role)
	s.JSONEq(`{"type":"offer","sdp":"v=0"}`, string(msg.SDP))

	s.notify(b, constants.MethodRTCAnswer, map[string]any{"to": a.id, "sdp": map[string]string{"type": "answer", "sdp": "v=0"}})
	var answer gateway.SignalMessage
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.MethodRTCAnswer), &answer))
	s.Equal(b.id, answer.From)
	s.Empty(answer.Role)

	s.notify(b, constants.MethodRTCIce, map[string]any{"to": a.id, "candidate": map[string]any{"candidate": "candidate:1", "sdpMLineIndex": 0}})
	var ice gateway.SignalMessage
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.MethodRTCIce), &ice))
	s.JSONEq(`{"candidate":"candidate:1","sdpMLineIndex":0}`, string(ice.Candidate))
	s.Empty(ice.SDP)
}

func (s *SignalServerSuite) TestCrossRoomSignalIsDropped() {
	a := s.connect()
	s.Require().True(s.join(a, "r1", constants.RoleA, "").OK)
	b := s.connect()
	s.Require().True(s.join(b, "r1", constants.RoleB, "").OK)
	x := s.connect()
	s.Require().True(s.join(x, "r2", constants.RoleA, "").OK)

	s.notify(x, constants.MethodRTCIce, map[string]any{"to": a.id, "candidate": map[string]any{"candidate": "from-x"}})
	s.notify(b, constants.MethodRTCIce, map[string]any{"to": a.id, "candidate": map[string]any{"candidate": "from-b"}})

	var msg gateway.SignalMessage
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.MethodRTCIce), &msg))
	s.Equal(b.id, msg.From)
}

func (s *SignalServerSuite) TestDisconnectNotifiesRoom() {
	a := s.connect()
	s.Require().True(s.join(a, "r1", constants.RoleA, "").OK)
	b := s.connect()
	s.Require().True(s.join(b, "r1", constants.RoleB, "").OK)
	s.expect(a, constants.NotifyPeerJoined)

	s.Require().NoError(b.conn.Close())

	var state gateway.PublicRoomState
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.NotifyRoomState), &state))
	s.Equal(gateway.PublicRoomState{SeatAOccupied: true}, state)

	var left gateway.PeerLeft
	s.Require().NoError(json.Unmarshal(s.expect(a, constants.NotifyPeerLeft), &left))
	s.Equal(gateway.PeerLeft{ID: b.id, Role: constants.RoleB}, left)
}

func (s *SignalServerSuite) TestLeaveFreesSeat() {
	a := s.connect()
	s.Require().True(s.join(a, "r1", constants.RoleA, "").OK)
	s.notify(a, constants.MethodLeave, nil)

	c := s.connect()
	s.Eventually(func() bool {
		ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
		defer cancel()
		var res gateway.JoinResult
		err := c.conn.Call(ctx, constants.MethodJoin, map[string]any{"roomKey": "r1", "role": "A"}, &res)
		return err == nil && res.OK
	}, waitTimeout, 20*time.Millisecond)
}
