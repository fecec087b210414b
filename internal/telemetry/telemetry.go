// Package telemetry provides OpenTelemetry metrics for FlowSync.
//
// Telemetry is disabled by default (no-op providers, zero overhead).
// When enabled, metrics are written to stderr via the stdout exporter.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/flowsync/flowsync"

var shutdownFns []func(context.Context) error

// Init configures the global meter provider. When enabled is false a no-op
// provider is installed and Init returns immediately.
func Init(ctx context.Context, enabled bool, serviceName, version string) error {
	if !enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("telemetry: stdout exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)
	return nil
}

// Shutdown flushes and stops all providers installed by Init.
func Shutdown(ctx context.Context) error {
	var firstErr error
	for _, fn := range shutdownFns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	shutdownFns = nil
	return firstErr
}

// Metrics bundles the instrument handles used across the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	notificationsDispatched metric.Int64Counter
	notificationsFailed     metric.Int64Counter
	issuesCreated           metric.Int64Counter
	txLease                 metric.Float64Histogram
}

// NewMetrics creates instruments on the global meter. Safe to call with the
// no-op provider installed.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationScope)

	m := &Metrics{}
	var err error
	if m.notificationsDispatched, err = meter.Int64Counter("flowsync.notifications.dispatched",
		metric.WithDescription("Notification records written, by type")); err != nil {
		return nil, err
	}
	if m.notificationsFailed, err = meter.Int64Counter("flowsync.notifications.failed",
		metric.WithDescription("Notification writes that failed and were swallowed")); err != nil {
		return nil, err
	}
	if m.issuesCreated, err = meter.Int64Counter("flowsync.issues.created",
		metric.WithDescription("Issues created")); err != nil {
		return nil, err
	}
	if m.txLease, err = meter.Float64Histogram("flowsync.tx.lease",
		metric.WithDescription("Seconds a write transaction held its connection"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// NotificationDispatched records a successfully written notification.
func (m *Metrics) NotificationDispatched(ctx context.Context, notifType string) {
	if m == nil {
		return
	}
	m.notificationsDispatched.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", notifType)))
}

// NotificationFailed records a swallowed notification write failure.
func (m *Metrics) NotificationFailed(ctx context.Context, notifType string) {
	if m == nil {
		return
	}
	m.notificationsFailed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", notifType)))
}

// IssueCreated records an issue creation.
func (m *Metrics) IssueCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.issuesCreated.Add(ctx, 1)
}

// TxLeaseObserver adapts the lease histogram to the sqlite store's
// observer hook.
func (m *Metrics) TxLeaseObserver() func(time.Duration) {
	return func(d time.Duration) {
		if m == nil {
			return
		}
		m.txLease.Record(context.Background(), d.Seconds())
	}
}
