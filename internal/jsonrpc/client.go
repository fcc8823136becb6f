package jsonrpc

import (
	"context"
	"time"
)

// TimeoutClient bounds every Call and Notify made through conn.
func TimeoutClient[T any](conn Conn[T], timeout time.Duration) Client[T] {
	if timeout <= 0 {
		panic("timeout must be greater than zero")
	}
	return &timeoutClient[T]{conn: conn, timeout: timeout}
}

type timeoutClient[T any] struct {
	conn    Conn[T]
	timeout time.Duration
}

func (c *timeoutClient[T]) Call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.conn.Call(ctx, method, params, result)
}

func (c *timeoutClient[T]) Notify(ctx context.Context, method string, params any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.conn.Notify(ctx, method, params)
}

func (c *timeoutClient[T]) Close() error {
	return c.conn.Close()
}
