package registry

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/boardbeam/backend/internal/otel"
)

var (
	joins          metric.Int64Counter
	joinsDenied    metric.Int64Counter
	leaves         metric.Int64Counter
	notifyFailed   metric.Int64Counter
	activeRooms    metric.Int64UpDownCounter
	activeSessions metric.Int64UpDownCounter

	eventQueueDepth metric.Int64UpDownCounter
)

func init() {
	m := intotel.NewMeter("gateway.registry", intotel.PrefixGateway)
	joins = m.Counter("registry.joins", "Successful joins by role")
	joinsDenied = m.Counter("registry.joins.denied", "Denied joins by reason")
	leaves = m.Counter("registry.leaves", "Sessions removed from a room by cause")
	notifyFailed = m.Counter("registry.notify.failed", "Membership notifications that could not be queued")
	activeRooms = m.Gauge("registry.rooms.active", "Rooms with at least one member")
	activeSessions = m.Gauge("registry.sessions.active", "Sessions joined to a room")
	eventQueueDepth = m.Gauge("registry.events.queue_depth", "Operations waiting for the registry loop")
}
