package directory

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/boardbeam/backend/internal/otel"
)

var (
	writes      metric.Int64Counter
	writeErrors metric.Int64Counter
	coalesced   metric.Int64Counter
)

func init() {
	m := intotel.NewMeter("gateway.directory", intotel.PrefixGateway)
	writes = m.Counter("directory.writes", "Room entries written to or removed from redis")
	writeErrors = m.Counter("directory.write.errors", "Room entries that could not be written")
	coalesced = m.Counter("directory.coalesced", "Room updates replaced by a newer one before being written")
}
