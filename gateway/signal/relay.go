package signal

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

const ErrRelayDropped errors.Code = "relay_dropped"

const (
	dropNotConnected = "not_connected"
	dropNotJoined    = "not_joined"
	dropCrossRoom    = "cross_room"
	dropRateLimited  = "rate_limited"
	dropInvalid      = "invalid_payload"
	dropSendFailed   = "send_failed"
)

// Router resolves the memberships of both ends of a relay attempt.
type Router interface {
	Route(ctx context.Context, from, to string) (gateway.Route, error)
}

// Relay forwards offers, answers and ICE candidates between sessions without
// looking into the payload.
type Relay struct {
	router       Router
	notifier     gateway.Notifier
	sameRoomOnly bool
	logger       *log.Logger
}

func NewRelay(router Router, notifier gateway.Notifier, sameRoomOnly bool, logger *log.Logger) *Relay {
	return &Relay{
		router:       router,
		notifier:     notifier,
		sameRoomOnly: sameRoomOnly,
		logger:       logger,
	}
}

// Relay delivers payload from one session to another. A dropped message
// returns ErrRelayDropped and is never reported to the sender.
func (r *Relay) Relay(ctx context.Context, from, to string, kind constants.SignalKind, payload json.RawMessage) error {
	method := constants.MethodForSignal(kind)
	if method == "" || len(payload) == 0 || to == "" {
		return r.drop(ctx, from, to, kind, dropInvalid)
	}

	route, err := r.router.Route(ctx, from, to)
	if err != nil {
		return errors.Wrapf(ErrRelayDropped, err, "route %s -> %s", from, to)
	}
	if r.sameRoomOnly && !route.SameRoom {
		if route.From == nil || route.To == nil {
			return r.drop(ctx, from, to, kind, dropNotJoined)
		}
		return r.drop(ctx, from, to, kind, dropCrossRoom)
	}

	msg := gateway.SignalMessage{From: from}
	switch kind {
	case constants.SignalOffer:
		msg.SDP = payload
		if route.From != nil {
			msg.Role = route.From.Role
		}
	case constants.SignalAnswer:
		msg.SDP = payload
	case constants.SignalCandidate:
		msg.Candidate = payload
	}

	if err := r.notifier.Notify(ctx, to, method, msg); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return r.drop(ctx, from, to, kind, dropNotConnected)
		}
		r.logger.Debug("Relay send failed", log.String("to", to), log.Error(err))
		return r.drop(ctx, from, to, kind, dropSendFailed)
	}

	relayForwarded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	return nil
}

func (r *Relay) drop(ctx context.Context, from, to string, kind constants.SignalKind, reason string) error {
	relayDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("reason", reason)))
	r.logger.Debug("Relay dropped",
		log.String("from", from),
		log.String("to", to),
		log.String("kind", string(kind)),
		log.String("reason", reason))
	return errors.Newf(ErrRelayDropped, "%s: %s -> %s", reason, from, to)
}
