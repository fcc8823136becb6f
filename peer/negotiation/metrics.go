package negotiation

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/boardbeam/backend/internal/otel"
)

var (
	offersSent      metric.Int64Counter
	answersSent     metric.Int64Counter
	candidatesQueue metric.Int64Counter
	linksOpened     metric.Int64Counter
	linksClosed     metric.Int64Counter
	linksActive     metric.Int64UpDownCounter

	negotiationSeconds metric.Float64Histogram
)

func init() {
	m := intotel.NewMeter("peer.negotiation", intotel.PrefixPeer)
	offersSent = m.Counter("offers.sent", "Offers sent to remote peers")
	answersSent = m.Counter("answers.sent", "Answers sent to remote peers")
	candidatesQueue = m.Counter("candidates.queued", "Remote candidates held until the remote description was set")
	linksOpened = m.Counter("links.opened", "Links created by direction")
	linksClosed = m.Counter("links.closed", "Links closed by reason")
	linksActive = m.Gauge("links.active", "Links with an established connection")
	negotiationSeconds = m.Histogram("links.negotiation.duration",
		"Time from link creation to an established connection",
		"s", 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30)
}
