package otel

// Metric prefixes for each binary
const (
	PrefixGateway = "gateway"
	PrefixPeer    = "peer"
)
