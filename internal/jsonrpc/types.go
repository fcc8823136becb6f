package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
)

// Handler holds the methods shared by every connection it creates.
// Methods must be defined before the first connection is opened.
type Handler[T any] interface {
	Def(method string, handler MethodHandler[T])
	NewConn(stream ObjectStream, v *T) Conn[T]
}

// MethodHandler serves one method. It runs on the connection read loop, so
// the next message of the same connection waits until it returns. The result
// is discarded for notifications.
type MethodHandler[T any] func(mctx MethodContext[T], params *json.RawMessage) (any, error)

type Client[T any] interface {
	Call(ctx context.Context, method string, params, result any) error
	Notify(ctx context.Context, method string, params any) error
	io.Closer
}

type Conn[T any] interface {
	Client[T]
	Open(ctx context.Context) error
	Context() MethodContext[T]
	Done() <-chan struct{}
}

// MethodContext gives handlers the per-connection state and the connection
// itself, to push notifications back.
type MethodContext[T any] interface {
	Get() *T
	Peer() Conn[T]
}

// ObjectStream moves whole JSON values. Implementations must allow Write
// concurrently with Read.
type ObjectStream interface {
	Open(ctx context.Context) error
	Read(ctx context.Context, v any) error
	Write(ctx context.Context, v any) error
	io.Closer
}

type methodContext[T any] struct {
	conn Conn[T]
	v    *T
}

func (m *methodContext[T]) Get() *T {
	return m.v
}

func (m *methodContext[T]) Peer() Conn[T] {
	return m.conn
}
