package websocket

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

const (
	ErrBufferFull errors.Code = "buffer_full"
	ErrMarshal    errors.Code = "marshal_error"
)

const (
	pingInterval = 10 * time.Second
	pingTimeout  = 3 * time.Second
	writeTimeout = 3 * time.Second
	queueSize    = 64
	// SDP bodies easily exceed the 32KiB default
	readLimit = 256 << 10
)

// wsStream is a jsonrpc.ObjectStream over one websocket. Writes are encoded
// by the caller and flushed by a single pump; a full queue closes the stream
// instead of blocking the writer.
type wsStream struct {
	conn  *websocket.Conn
	queue chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	once   sync.Once
	mu     sync.Mutex
	code   websocket.StatusCode
	logger *log.Logger
}

func newStream(conn *websocket.Conn, logger *log.Logger) *wsStream {
	conn.SetReadLimit(readLimit)
	ctx, cancel := context.WithCancel(context.Background())
	return &wsStream{
		conn:   conn,
		queue:  make(chan []byte, queueSize),
		ctx:    ctx,
		cancel: cancel,
		code:   websocket.StatusAbnormalClosure,
		logger: logger,
	}
}

// Open starts the write pump. The stream closes when ctx is done.
func (ws *wsStream) Open(ctx context.Context) error {
	context.AfterFunc(ctx, func() { ws.shut(context.Canceled) })
	go func() {
		ws.shut(ws.pump())
	}()
	return nil
}

func (ws *wsStream) Read(ctx context.Context, v any) error {
	if err := wsjson.Read(ctx, ws.conn, v); err != nil {
		ws.shut(err)
		return err
	}
	return nil
}

func (ws *wsStream) Write(ctx context.Context, v any) error {
	if ctx.Err() != nil || ws.ctx.Err() != nil {
		return net.ErrClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(ErrMarshal, err, "encode message")
	}

	select {
	case ws.queue <- data:
		return nil
	default:
		ws.shut(ErrBufferFull)
		return errors.Newf(ErrBufferFull, "%d messages queued", queueSize)
	}
}

func (ws *wsStream) Close() error {
	ws.shut(nil)
	return nil
}

// classify maps the reason a stream ends to the close code reported to
// hooks, and whether the peer is already gone.
func classify(err error) (code websocket.StatusCode, gone bool) {
	switch {
	case err == nil:
		return websocket.StatusNormalClosure, false
	case websocket.CloseStatus(err) != -1:
		return websocket.CloseStatus(err), true
	case errors.Is(err, net.ErrClosed), errors.Is(err, context.Canceled):
		return websocket.StatusGoingAway, true
	case errors.Is(err, ErrBufferFull):
		return websocket.StatusPolicyViolation, false
	default:
		return websocket.StatusAbnormalClosure, true
	}
}

func (ws *wsStream) shut(err error) {
	ws.once.Do(func() {
		code, gone := classify(err)
		if code == websocket.StatusPolicyViolation || code == websocket.StatusAbnormalClosure {
			ws.logger.Warn("Connection dropped", log.Int("code", int(code)), log.Error(err))
		} else {
			ws.logger.Debug("Connection closed", log.Int("code", int(code)), log.Bool("remote", gone))
		}

		ws.mu.Lock()
		ws.code = code
		ws.mu.Unlock()

		if gone {
			_ = ws.conn.CloseNow()
		} else {
			_ = ws.conn.Close(code, "bye")
		}
		ws.cancel()
	})
}

// wait blocks until the stream is closed and returns its close code.
func (ws *wsStream) wait() int {
	<-ws.ctx.Done()
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return int(ws.code)
}

func (ws *wsStream) pump() error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ws.ctx.Done():
			return ws.ctx.Err()
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(ws.ctx, pingTimeout)
			err := ws.conn.Ping(ctx)
			cancel()
			if err != nil {
				return err
			}
		case data := <-ws.queue:
			ctx, cancel := context.WithTimeout(ws.ctx, writeTimeout)
			err := ws.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
