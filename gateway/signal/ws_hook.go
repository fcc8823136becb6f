package signal

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/jsonrpc"
	wsrpc "github.com/boardbeam/backend/internal/jsonrpc/websocket"
	"github.com/boardbeam/backend/internal/jwt"
	"github.com/boardbeam/backend/internal/log"
)

const cleanupTimeout = 5 * time.Second

func NewWSHook(
	connMgr *ConnManager,
	registry Registry,
	cfg *Config,
	logger *log.Logger,
) wsrpc.ConnectionHooks[sessionContext] {
	return &wsHookImpl{
		connMgr:  connMgr,
		registry: registry,
		cfg:      cfg,
		tickets:  cfg.ticketAuth(),
		logger:   logger,
	}
}

type wsHookImpl struct {
	connMgr  *ConnManager
	registry Registry
	cfg      *Config
	tickets  jwt.TicketAuth
	logger   *log.Logger
}

// OnVerify identifies every connection by a server assigned id. When tickets
// are required the handshake must carry a valid one.
func (h *wsHookImpl) OnVerify(r *http.Request) (*sessionContext, bool, error) {
	sess := &sessionContext{
		id:         uuid.New().String(),
		remoteAddr: r.RemoteAddr,
		reqCtx:     r.Context(),
		limiter:    h.cfg.newLimiter(),
	}
	if h.tickets == nil {
		return sess, true, nil
	}

	ticket, err := h.tickets.Verify(bearerToken(r))
	if err != nil {
		if errors.Is(err, jwt.ErrInvalidToken) || errors.Is(err, jwt.ErrNoToken) {
			h.logger.Debug("Connection refused",
				log.String("remote_addr", r.RemoteAddr),
				log.Error(err))
			return nil, false, nil
		}
		return nil, false, err
	}
	sess.ticket = ticket
	return sess, true, nil
}

// bearerToken reads the ticket from the token query parameter or the
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (h *wsHookImpl) OnConnect(mctx jsonrpc.MethodContext[sessionContext]) {
	sess := mctx.Get()
	h.connMgr.Add(sess.id, mctx.Peer())

	connectionsActive.Add(sess.reqCtx, 1)
	connectionsTotal.Add(sess.reqCtx, 1)
	h.logger.Info("Client connected",
		log.String("session", sess.id),
		log.String("remote_addr", sess.remoteAddr))
}

func (h *wsHookImpl) OnDisconnect(mctx jsonrpc.MethodContext[sessionContext], closeCode int) {
	sess := mctx.Get()
	h.connMgr.Remove(sess.id)

	// the request context may already be gone
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := h.registry.DisconnectCleanup(ctx, sess.id); err != nil {
		h.logger.Error("Disconnect cleanup failed",
			log.String("session", sess.id),
			log.Error(err))
	}

	connectionsActive.Add(ctx, -1)
	disconnectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("code", closeCode)))
	h.logger.Info("Client disconnected",
		log.String("session", sess.id),
		log.Int("close_code", closeCode))
}
