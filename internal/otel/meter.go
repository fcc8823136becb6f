package otel

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Meter names instruments "<prefix>.<name>". Instrument creation only fails
// on invalid names, so it panics at init time.
type Meter struct {
	meter  metric.Meter
	prefix string
}

func NewMeter(scope, prefix string) *Meter {
	return &Meter{meter: otel.Meter(scope), prefix: prefix}
}

func must[T any](name string, inst T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("instrument %s: %v", name, err))
	}
	return inst
}

func (m *Meter) fullName(name string) string {
	if m.prefix == "" {
		return name
	}
	return m.prefix + "." + name
}

func (m *Meter) Counter(name, description string) metric.Int64Counter {
	name = m.fullName(name)
	c, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	return must(name, c, err)
}

// Gauge is an up-down counter, callers add and remove.
func (m *Meter) Gauge(name, description string) metric.Int64UpDownCounter {
	name = m.fullName(name)
	c, err := m.meter.Int64UpDownCounter(name, metric.WithDescription(description))
	return must(name, c, err)
}

func (m *Meter) Histogram(name, description, unit string, bounds ...float64) metric.Float64Histogram {
	name = m.fullName(name)
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit(unit),
	}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := m.meter.Float64Histogram(name, opts...)
	return must(name, h, err)
}
