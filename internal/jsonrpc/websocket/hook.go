package websocket

import (
	"net/http"

	"github.com/boardbeam/backend/internal/jsonrpc"
)

// ConnectionHooks follow a connection through its life.
type ConnectionHooks[T any] interface {
	// OnVerify runs before the upgrade and builds the connection state.
	// ok=false refuses with 401, an error refuses with 500.
	OnVerify(r *http.Request) (state *T, ok bool, err error)

	// OnConnect runs once the socket is accepted, before any message is read.
	OnConnect(mctx jsonrpc.MethodContext[T])

	// OnDisconnect runs exactly once per accepted connection.
	OnDisconnect(mctx jsonrpc.MethodContext[T], closeCode int)
}
