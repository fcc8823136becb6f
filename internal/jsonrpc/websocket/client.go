package websocket

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
)

const ErrDial errors.Code = "dial_failed"

type DialOptions struct {
	Header http.Header
	Client *http.Client
}

// Dial opens a JSON-RPC connection to a websocket endpoint, dispatching inbound
// requests and notifications to methods registered on handler.
// dialCtx bounds the handshake only, connCtx bounds the connection lifetime.
func Dial[T any](
	dialCtx context.Context,
	connCtx context.Context,
	url string,
	handler jsonrpc.Handler[T],
	v *T,
	opts *DialOptions,
	logger *log.Logger,
) (jsonrpc.Conn[T], error) {
	wsOpts := &websocket.DialOptions{}
	if opts != nil {
		wsOpts.HTTPHeader = opts.Header
		wsOpts.HTTPClient = opts.Client
	}

	wsConn, resp, err := websocket.Dial(dialCtx, url, wsOpts)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(ErrDial, err, "dial %s", url)
	}

	conn := handler.NewConn(newStream(wsConn, logger), v)
	if err := conn.Open(connCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
