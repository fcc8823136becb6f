package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), &Config{ServiceName: "gateway"}, log.NewTest(t))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}

func TestMeterInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m := NewMeter("test.scope", PrefixGateway)
	ctx := context.Background()
	m.Counter("joins", "joins").Add(ctx, 2, metric.WithAttributes(attribute.String("role", "A")))
	g := m.Gauge("rooms.active", "rooms")
	g.Add(ctx, 3)
	g.Add(ctx, -1)
	m.Histogram("join.duration", "join latency", "s", 0.1, 1).Record(ctx, 0.5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "gateway.joins")
	require.Contains(t, byName, "gateway.rooms.active")
	require.Contains(t, byName, "gateway.join.duration")

	gauge := byName["gateway.rooms.active"].Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
	hist := byName["gateway.join.duration"].Data.(metricdata.Histogram[float64])
	assert.Equal(t, []float64{0.1, 1}, hist.DataPoints[0].Bounds)
}

func TestFailRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "test.scope", "signal.join", attribute.String("room", "r1"))
	Fail(span, nil)
	Fail(span, errors.New("denied", "seat taken"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "signal.join", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)
}
