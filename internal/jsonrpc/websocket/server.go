package websocket

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
)

// Server upgrades requests and serves JSON-RPC over the socket. Methods are
// defined on the embedded handler before the first connection.
type Server[T any] struct {
	jsonrpc.Handler[T]
	hooks   ConnectionHooks[T]
	origins []string
	logger  *log.Logger
}

func NewServer[T any](hooks ConnectionHooks[T], allowedOrigins []string, logger *log.Logger) *Server[T] {
	if hooks == nil {
		panic("connection hooks are required")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Server[T]{
		Handler: jsonrpc.NewHandler[T](logger),
		hooks:   hooks,
		origins: allowedOrigins,
		logger:  logger,
	}
}

// HandleWebSocket serves one connection and returns when it is closed.
func (s *Server[T]) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(log.String("remote_addr", r.RemoteAddr))

	state, ok, err := s.hooks.OnVerify(r)
	switch {
	case err != nil:
		logger.Warn("Connection verification error", log.Error(err))
		http.Error(w, "fail to verify", http.StatusInternalServerError)
		return
	case !ok:
		logger.Info("Connection refused")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		// Accept already wrote the response
		logger.Warn("WebSocket upgrade failed", log.Error(err))
		return
	}

	stream := newStream(ws, logger)
	conn := s.Handler.NewConn(stream, state)
	s.hooks.OnConnect(conn.Context())

	code := int(websocket.StatusInternalError)
	if err := conn.Open(r.Context()); err != nil {
		logger.Error("Failed to open RPC connection", log.Error(err))
		_ = conn.Close()
	} else {
		logger.Debug("Connection established", log.String("user_agent", r.UserAgent()))
		code = stream.wait()
	}
	s.hooks.OnDisconnect(conn.Context(), code)
}
