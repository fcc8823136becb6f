package signal

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/sync"
)

const ErrNotConnected errors.Code = "not_connected"

// ConnManager tracks the live connection of every session and delivers
// notifications to them. Sending only queues on the connection's write pump.
type ConnManager struct {
	conns  *sync.Map[string, jsonrpc.Conn[sessionContext]]
	logger *log.Logger
}

func NewConnManager(logger *log.Logger) *ConnManager {
	return &ConnManager{
		conns:  sync.NewMap[string, jsonrpc.Conn[sessionContext]](),
		logger: logger,
	}
}

func (m *ConnManager) Add(sessionID string, conn jsonrpc.Conn[sessionContext]) {
	m.conns.Store(sessionID, conn)
	m.logger.Debug("Connection added", log.String("session", sessionID))
}

func (m *ConnManager) Remove(sessionID string) {
	m.conns.Delete(sessionID)
	m.logger.Debug("Connection removed", log.String("session", sessionID))
}

func (m *ConnManager) Len() int {
	return m.conns.Len()
}

// Notify implements gateway.Notifier.
func (m *ConnManager) Notify(ctx context.Context, sessionID, method string, params any) error {
	conn, ok := m.conns.Load(sessionID)
	if !ok {
		return errors.Newf(ErrNotConnected, "session %s", sessionID)
	}

	attrs := metric.WithAttributes(attribute.String("method", method))
	if err := conn.Notify(ctx, method, params); err != nil {
		notificationsFailed.Add(ctx, 1, attrs)
		return err
	}
	notificationsSent.Add(ctx, 1, attrs)
	return nil
}

// CloseAll closes and forgets every tracked connection, used on shutdown.
func (m *ConnManager) CloseAll() {
	for _, conn := range m.conns.Drain() {
		_ = conn.Close()
	}
}
