package signal

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/gateway/registry"
	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
	intotel "github.com/boardbeam/backend/internal/otel"
)

// Registry is the part of the session registry the signaling surface uses.
type Registry interface {
	Join(ctx context.Context, req registry.JoinRequest) (gateway.PublicRoomState, error)
	Leave(ctx context.Context, sessionID string) error
	DisconnectCleanup(ctx context.Context, sessionID string) error
	Router
}

type Server struct {
	jsonrpc.Handler[sessionContext]
	registry Registry
	relay    *Relay
	logger   *log.Logger
}

func NewServer(
	handler jsonrpc.Handler[sessionContext],
	registry Registry,
	relay *Relay,
	logger *log.Logger,
) *Server {
	return &Server{
		Handler:  handler,
		registry: registry,
		relay:    relay,
		logger:   logger,
	}
}

func (s *Server) Open(context.Context) error {
	s.logger.Info("Opening Signal Server")
	s.register()
	return nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing Signal Server")
	return nil
}

func (s *Server) register() {
	// handlers run on the connection read loop, one call at a time per connection
	s.Def(constants.MethodJoin, s.handleJoin)
	s.Def(constants.MethodLeave, s.handleLeave)
	s.Def(constants.MethodRTCOffer, s.handleSignal(constants.SignalOffer))
	s.Def(constants.MethodRTCAnswer, s.handleSignal(constants.SignalAnswer))
	s.Def(constants.MethodRTCIce, s.handleSignal(constants.SignalCandidate))
}

func (s *Server) handleJoin(mctx jsonrpc.MethodContext[sessionContext], params *json.RawMessage) (any, error) {
	sess := mctx.Get()
	ctx, span := intotel.Start(sess.reqCtx, "gateway.signal", "signal.join",
		attribute.String("session", sess.id))
	defer span.End()

	var req gateway.JoinRequest
	if err := jsonrpc.ShouldBindParams(params, &req); err != nil {
		s.logger.Debug("Invalid join payload", log.String("session", sess.id), log.Error(err))
		return s.deny(ctx, mctx, constants.DenyInvalidPayload), nil
	}
	span.SetAttributes(attribute.String("room", req.RoomKey), attribute.String("role", string(req.Role)))

	if sess.ticket != nil && !sess.ticket.Allows(req.RoomKey, req.Role) {
		s.logger.Info("Join outside of ticket",
			log.String("session", sess.id),
			log.String("room", req.RoomKey),
			log.String("ticket_room", sess.ticket.RoomKey))
		return s.deny(ctx, mctx, constants.DenyForbidden), nil
	}

	state, err := s.registry.Join(ctx, registry.JoinRequest{
		RoomKey:   req.RoomKey,
		Role:      req.Role,
		SessionID: sess.id,
		Name:      req.Name,
	})
	if err != nil {
		intotel.Fail(span, err)
		return s.deny(ctx, mctx, registry.DenyReason(err)), nil
	}

	joinRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return gateway.JoinResult{OK: true, State: &state}, nil
}

// deny reports a refused join both as the call result and as a join-denied notification.
func (s *Server) deny(
	ctx context.Context,
	mctx jsonrpc.MethodContext[sessionContext],
	reason constants.DenyReason,
) gateway.JoinResult {
	joinRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(reason))))
	if err := mctx.Peer().Notify(ctx, constants.NotifyJoinDenied, gateway.JoinDenied{Reason: reason}); err != nil {
		s.logger.Debug("Failed to send join-denied",
			log.String("session", mctx.Get().id),
			log.Error(err))
	}
	return gateway.JoinResult{OK: false, Error: reason}
}

func (s *Server) handleLeave(mctx jsonrpc.MethodContext[sessionContext], _ *json.RawMessage) (any, error) {
	sess := mctx.Get()
	if err := s.registry.Leave(sess.reqCtx, sess.id); err != nil {
		s.logger.Error("Failed to leave", log.String("session", sess.id), log.Error(err))
		return nil, jsonrpc.ErrInternal("leave failed")
	}
	//nolint:nilnil
	return nil, nil
}

func (s *Server) handleSignal(kind constants.SignalKind) jsonrpc.MethodHandler[sessionContext] {
	return func(mctx jsonrpc.MethodContext[sessionContext], params *json.RawMessage) (any, error) {
		sess := mctx.Get()
		ctx := sess.reqCtx

		if sess.limiter != nil && !sess.limiter.Allow() {
			_ = s.relay.drop(ctx, sess.id, "", kind, dropRateLimited)
			//nolint:nilnil
			return nil, nil
		}

		var req gateway.SignalRequest
		if err := jsonrpc.ShouldBindParams(params, &req); err != nil {
			_ = s.relay.drop(ctx, sess.id, "", kind, dropInvalid)
			return nil, err
		}

		payload := req.SDP
		if kind == constants.SignalCandidate {
			payload = req.Candidate
		}
		// drops are silent towards the sender
		_ = s.relay.Relay(ctx, sess.id, req.To, kind, payload)
		//nolint:nilnil
		return nil, nil
	}
}
