package signal

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/boardbeam/backend/internal/otel"
)

var (
	connectionsActive metric.Int64UpDownCounter
	connectionsTotal  metric.Int64Counter
	disconnectsTotal  metric.Int64Counter

	joinRequests metric.Int64Counter

	relayForwarded metric.Int64Counter
	relayDropped   metric.Int64Counter

	notificationsSent   metric.Int64Counter
	notificationsFailed metric.Int64Counter
)

func init() {
	m := intotel.NewMeter("gateway.signal", intotel.PrefixGateway)
	connectionsActive = m.Gauge("connections.active", "Number of active WebSocket connections")
	connectionsTotal = m.Counter("connections.total", "Total WebSocket connections established")
	disconnectsTotal = m.Counter("disconnects.total", "Total WebSocket disconnections by close code")
	joinRequests = m.Counter("join.requests", "Join requests by outcome")
	relayForwarded = m.Counter("relay.forwarded", "Signaling messages forwarded by kind")
	relayDropped = m.Counter("relay.dropped", "Signaling messages dropped by reason")
	notificationsSent = m.Counter("notifications.sent", "Total notifications queued to clients")
	notificationsFailed = m.Counter("notifications.failed", "Total notifications that could not be queued")
}
