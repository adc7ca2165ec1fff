package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the custom metrics instruments for the application.
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	StorageFailures metric.Int64Counter
	TodosGauge      metric.Int64ObservableGauge
	todoCount       atomic.Pointer[func() int64]
}

// InitMeterProvider initializes the OpenTelemetry meter provider.
// It configures an OTLP gRPC exporter and sets up the global meter provider.
func InitMeterProvider(ctx context.Context, serviceName, otlpEndpoint, environment string) (*sdkmetric.MeterProvider, error) {
	conn, err := dial(otlpEndpoint)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}

	// Periodic reader (10 second interval)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMetrics creates and registers custom metrics instruments.
// todoCountFunc is sampled by the todos gauge on each collection; it may
// be nil and supplied later with TrackTodos.
func NewMetrics(meter metric.Meter, todoCountFunc func() int64) (*Metrics, error) {
	m := &Metrics{}
	m.TrackTodos(todoCountFunc)

	var err error

	m.RequestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	// Load and save failures are swallowed by the storage adapter, so
	// this counter is the only signal besides the error log.
	m.StorageFailures, err = meter.Int64Counter(
		"storage_failures_total",
		metric.WithDescription("Storage load, decode and save failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage failure counter: %w", err)
	}

	m.TodosGauge, err = meter.Int64ObservableGauge(
		"todos_total",
		metric.WithDescription("Current number of todos in the collection"),
		metric.WithUnit("{todo}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if fn := m.todoCount.Load(); fn != nil {
				o.Observe((*fn)())
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create todos gauge: %w", err)
	}

	return m, nil
}

// TrackTodos sets the function sampled by the todos gauge.
func (m *Metrics) TrackTodos(fn func() int64) {
	if fn == nil {
		return
	}
	m.todoCount.Store(&fn)
}
