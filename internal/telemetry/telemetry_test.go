package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
)

func TestNewProviders_EmptyEndpointIsNoop(t *testing.T) {
	p, err := NewProviders(context.Background(), "", "authcore-alertworker", false)
	require.NoError(t, err)
	require.NotNil(t, p.TracerProvider)
	require.NotNil(t, p.MeterProvider)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	_, err := NewProviders(context.Background(), "://bad", "authcore-alertworker", false)
	require.Error(t, err)
}

func TestNewWorkerMetrics(t *testing.T) {
	meter := metric.NewMeterProvider().Meter("test")
	m, err := NewWorkerMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, m.SweepsTotal)
	require.NotNil(t, m.SweepFailures)
	require.NotNil(t, m.SweepSeconds)

	// Instruments accept records without a collecting reader attached.
	m.SweepsTotal.Add(context.Background(), 1)
	m.SweepSeconds.Record(context.Background(), 0.42)
}
