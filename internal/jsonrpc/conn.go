package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

type dispatchFunc[T any] func(context.Context, *connImpl[T], *envelope)

type connImpl[T any] struct {
	stream   ObjectStream
	mctx     MethodContext[T]
	dispatch dispatchFunc[T]

	writeMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	pending map[string]chan *envelope

	done   chan struct{}
	logger *log.Logger
}

func newConn[T any](stream ObjectStream, v *T, dispatch dispatchFunc[T], logger *log.Logger) *connImpl[T] {
	c := &connImpl[T]{
		stream:   stream,
		dispatch: dispatch,
		pending:  make(map[string]chan *envelope),
		done:     make(chan struct{}),
		logger:   logger,
	}
	c.mctx = &methodContext[T]{conn: c, v: v}
	return c
}

// Open starts reading. The connection closes when ctx is done or the
// stream fails.
func (c *connImpl[T]) Open(ctx context.Context) error {
	if err := c.stream.Open(ctx); err != nil {
		return err
	}
	go c.readLoop(ctx)
	return nil
}

func (c *connImpl[T]) Context() MethodContext[T] {
	return c.mctx
}

func (c *connImpl[T]) Done() <-chan struct{} {
	return c.done
}

func (c *connImpl[T]) Close() error {
	return c.shutdown(nil)
}

// Call sends a request and waits for its response. A nil result discards
// the response body.
func (c *connImpl[T]) Call(ctx context.Context, method string, params, result any) error {
	req, err := newRequest(method, params)
	if err != nil {
		return err
	}
	key := string(req.ID)
	ch := make(chan *envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(ErrClosed, "connection closed")
	}
	c.pending[key] = ch
	c.mu.Unlock()

	if err := c.write(ctx, req); err != nil {
		c.forget(key)
		return err
	}

	select {
	case <-ctx.Done():
		c.forget(key)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return errors.Newf(ErrClosed, "connection closed before %s replied", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || resp.Result == nil {
			return nil
		}
		return json.Unmarshal(*resp.Result, result)
	}
}

func (c *connImpl[T]) Notify(ctx context.Context, method string, params any) error {
	msg, err := newNotification(method, params)
	if err != nil {
		return err
	}
	return c.write(ctx, msg)
}

func (c *connImpl[T]) write(ctx context.Context, msg *envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New(ErrClosed, "connection closed")
	}
	return c.stream.Write(ctx, msg)
}

func (c *connImpl[T]) forget(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func (c *connImpl[T]) take(key string) (chan *envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[key]
	delete(c.pending, key)
	return ch, ok
}

// shutdown fails every pending call and closes the stream once.
func (c *connImpl[T]) shutdown(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(ErrClosed, "connection already closed")
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, io.ErrUnexpectedEOF) {
		c.logger.Debug("Connection closed on error", log.Error(cause))
	}
	err := c.stream.Close()
	close(c.done)
	return err
}

func (c *connImpl[T]) readLoop(ctx context.Context) {
	for {
		var msg envelope
		if err := c.stream.Read(ctx, &msg); err != nil {
			_ = c.shutdown(err)
			return
		}

		switch msg.kind() {
		case kindRequest, kindNotification:
			c.dispatch(ctx, c, &msg)
		case kindResponse:
			ch, ok := c.take(string(msg.ID))
			if !ok {
				c.logger.Debug("Dropping response to unknown call", log.String("id", string(msg.ID)))
				continue
			}
			ch <- &msg
		default:
			c.logger.Warn("Dropping malformed message")
		}
	}
}
