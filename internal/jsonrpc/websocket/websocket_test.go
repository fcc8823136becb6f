package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
)

type connState struct {
	ID string
}

type countingHooks struct {
	reject      bool
	connects    atomic.Int32
	disconnects chan int
}

func (h *countingHooks) OnVerify(*http.Request) (*connState, bool, error) {
	if h.reject {
		return nil, false, nil
	}
	return &connState{ID: "c1"}, true, nil
}

func (h *countingHooks) OnConnect(jsonrpc.MethodContext[connState]) {
	h.connects.Add(1)
}

func (h *countingHooks) OnDisconnect(_ jsonrpc.MethodContext[connState], code int) {
	h.disconnects <- code
}

type WebSocketSuite struct {
	suite.Suite
	hooks  *countingHooks
	server *Server[connState]
	http   *httptest.Server
	url    string
}

func TestWebSocketSuite(t *testing.T) {
	suite.Run(t, new(WebSocketSuite))
}

func (s *WebSocketSuite) SetupTest() {
	s.hooks = &countingHooks{disconnects: make(chan int, 1)}
	s.server = NewServer[connState](s.hooks, nil, log.NewNop())
	s.server.Def("whoami", func(mctx jsonrpc.MethodContext[connState], _ *json.RawMessage) (any, error) {
		return map[string]string{"id": mctx.Get().ID}, nil
	})
	s.server.Def("poke", func(mctx jsonrpc.MethodContext[connState], _ *json.RawMessage) (any, error) {
		return nil, mctx.Peer().Notify(context.Background(), "poked", map[string]int{"n": 1})
	})
	s.http = httptest.NewServer(http.HandlerFunc(s.server.HandleWebSocket))
	s.url = "ws" + strings.TrimPrefix(s.http.URL, "http")
}

func (s *WebSocketSuite) TearDownTest() {
	s.http.Close()
}

func (s *WebSocketSuite) dial(handler jsonrpc.Handler[connState]) jsonrpc.Conn[connState] {
	if handler == nil {
		handler = jsonrpc.NewHandler[connState](log.NewNop())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, err := Dial[connState](ctx, context.Background(), s.url, handler, &connState{}, nil, log.NewNop())
	s.Require().NoError(err)
	return conn
}

func (s *WebSocketSuite) TestCallRoundTrip() {
	conn := s.dial(nil)
	defer conn.Close()

	var out map[string]string
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Require().NoError(conn.Call(ctx, "whoami", nil, &out))
	s.Equal("c1", out["id"])
	s.EqualValues(1, s.hooks.connects.Load())
}

func (s *WebSocketSuite) TestServerNotificationReachesClient() {
	got := make(chan string, 1)
	handler := jsonrpc.NewHandler[connState](log.NewNop())
	handler.Def("poked", func(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
		got <- string(*params)
		return nil, nil
	})
	conn := s.dial(handler)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Require().NoError(conn.Call(ctx, "poke", nil, nil))

	select {
	case p := <-got:
		s.JSONEq(`{"n":1}`, p)
	case <-time.After(3 * time.Second):
		s.Fail("notification not received")
	}
}

func (s *WebSocketSuite) TestClientCloseTriggersDisconnectHook() {
	conn := s.dial(nil)
	s.Require().NoError(conn.Close())

	select {
	case <-s.hooks.disconnects:
	case <-time.After(3 * time.Second):
		s.Fail("OnDisconnect not called")
	}
	<-conn.Done()
}

func (s *WebSocketSuite) TestRejectedVerification() {
	s.hooks.reject = true
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Dial[connState](ctx, context.Background(), s.url,
		jsonrpc.NewHandler[connState](log.NewNop()), &connState{}, nil, log.NewNop())
	s.Require().Error(err)
	s.ErrorIs(err, ErrDial)
}
