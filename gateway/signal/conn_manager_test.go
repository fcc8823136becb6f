package signal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
)

type fakeConn struct {
	jsonrpc.Conn[sessionContext]
	sent   []string
	err    error
	closed bool
}

func (c *fakeConn) Notify(_ context.Context, method string, _ any) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, method)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type ConnManagerTestSuite struct {
	suite.Suite
	mgr *ConnManager
}

func TestConnManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ConnManagerTestSuite))
}

func (s *ConnManagerTestSuite) SetupTest() {
	s.mgr = NewConnManager(log.NewTest(s.T()))
}

func (s *ConnManagerTestSuite) TestNotifyUnknownSession() {
	err := s.mgr.Notify(context.Background(), "nobody", "peer-left", nil)
	s.True(errors.Is(err, ErrNotConnected))
}

func (s *ConnManagerTestSuite) TestNotifyRoutesBySession() {
	c1, c2 := &fakeConn{}, &fakeConn{}
	s.mgr.Add("s1", c1)
	s.mgr.Add("s2", c2)
	s.Equal(2, s.mgr.Len())

	s.NoError(s.mgr.Notify(context.Background(), "s2", "room-state", nil))
	s.Empty(c1.sent)
	s.Equal([]string{"room-state"}, c2.sent)

	s.mgr.Remove("s2")
	s.True(errors.Is(s.mgr.Notify(context.Background(), "s2", "room-state", nil), ErrNotConnected))
	s.Equal(1, s.mgr.Len())
}

func (s *ConnManagerTestSuite) TestNotifyPropagatesConnError() {
	s.mgr.Add("s1", &fakeConn{err: errors.New("buffer_full", "full")})
	s.Error(s.mgr.Notify(context.Background(), "s1", "peers", nil))
}

func (s *ConnManagerTestSuite) TestCloseAll() {
	c1, c2 := &fakeConn{}, &fakeConn{}
	s.mgr.Add("s1", c1)
	s.mgr.Add("s2", c2)
	s.mgr.CloseAll()
	s.True(c1.closed)
	s.True(c2.closed)
	s.Equal(0, s.mgr.Len())
}
