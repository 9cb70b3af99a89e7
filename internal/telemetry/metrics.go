package telemetry

import "go.opentelemetry.io/otel/metric"

// WorkerMetrics are the instruments the alert worker reports on each
// sweep.
type WorkerMetrics struct {
	SweepsTotal   metric.Int64Counter
	SweepFailures metric.Int64Counter
	SweepSeconds  metric.Float64Histogram
}

func NewWorkerMetrics(meter metric.Meter) (*WorkerMetrics, error) {
	sweeps, err := meter.Int64Counter("alertworker.sweeps",
		metric.WithDescription("Completed alert rule sweeps"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("alertworker.sweep_failures",
		metric.WithDescription("Alert rule sweeps that returned an error"))
	if err != nil {
		return nil, err
	}
	seconds, err := meter.Float64Histogram("alertworker.sweep_duration_seconds",
		metric.WithDescription("Wall time of one alert rule sweep"))
	if err != nil {
		return nil, err
	}
	return &WorkerMetrics{SweepsTotal: sweeps, SweepFailures: failures, SweepSeconds: seconds}, nil
}
