// Package telemetry provides OpenTelemetry metrics and tracing for the
// toolchanger runtime.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter and tracer name used by this module.
const InstrumentationName = "github.com/felixgeelhaar/toolchanger"

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	toolChanges       metric.Int64Counter
	initializations   metric.Int64Counter
	hookRuns          metric.Int64Counter
	statusTransitions metric.Int64Counter
	errors            metric.Int64Counter

	// Histograms
	changeDuration metric.Float64Histogram
	initDuration   metric.Float64Histogram
	hookDuration   metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	activeSequences metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: InstrumentationName).
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    InstrumentationName,
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider on the global meter provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		defaults := DefaultMetricsConfig()
		config.MeterName = defaults.MeterName
		if config.MeterVersion == "" {
			config.MeterVersion = defaults.MeterVersion
		}
	}

	meter := otel.GetMeterProvider().Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
		metric.WithInstrumentationAttributes(config.Attributes...),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

// initInstruments initializes all metric instruments.
func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.toolChanges, err = mp.meter.Int64Counter(
		"toolchanger.tool.changes",
		metric.WithDescription("Number of tool change sequences"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return err
	}

	mp.initializations, err = mp.meter.Int64Counter(
		"toolchanger.initializations",
		metric.WithDescription("Number of initialization sequences"),
		metric.WithUnit("{initialization}"),
	)
	if err != nil {
		return err
	}

	mp.hookRuns, err = mp.meter.Int64Counter(
		"toolchanger.hook.runs",
		metric.WithDescription("Number of G-code hook runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	mp.statusTransitions, err = mp.meter.Int64Counter(
		"toolchanger.status.transitions",
		metric.WithDescription("Number of status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	mp.errors, err = mp.meter.Int64Counter(
		"toolchanger.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	mp.changeDuration, err = mp.meter.Float64Histogram(
		"toolchanger.tool.change.duration",
		metric.WithDescription("Duration of tool change sequences"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.initDuration, err = mp.meter.Float64Histogram(
		"toolchanger.initialization.duration",
		metric.WithDescription("Duration of initialization sequences"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.hookDuration, err = mp.meter.Float64Histogram(
		"toolchanger.hook.duration",
		metric.WithDescription("Duration of G-code hook runs"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.activeSequences, err = mp.meter.Int64UpDownCounter(
		"toolchanger.sequences.active",
		metric.WithDescription("Number of sequences in progress"),
		metric.WithUnit("{sequence}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordToolChange records a completed or failed tool change.
func (mp *MetricsProvider) RecordToolChange(ctx context.Context, toolchanger, toolName string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("toolchanger.name", toolchanger),
		attribute.String("tool.name", toolName),
		attribute.Bool("success", success),
	}

	mp.toolChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.changeDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		mp.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.type", "tool_change"),
			attribute.String("toolchanger.name", toolchanger),
		))
	}
}

// RecordInitialization records an initialization sequence.
func (mp *MetricsProvider) RecordInitialization(ctx context.Context, toolchanger string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("toolchanger.name", toolchanger),
		attribute.Bool("success", success),
	}

	mp.initializations.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.initDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		mp.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.type", "initialization"),
			attribute.String("toolchanger.name", toolchanger),
		))
	}
}

// RecordHook records a single hook run.
func (mp *MetricsProvider) RecordHook(ctx context.Context, hook string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("hook.name", hook),
		attribute.Bool("success", success),
	}

	mp.hookRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.hookDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordStatusTransition records a status change.
func (mp *MetricsProvider) RecordStatusTransition(ctx context.Context, toolchanger, from, to string) {
	mp.statusTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("toolchanger.name", toolchanger),
		attribute.String("status.from", from),
		attribute.String("status.to", to),
	))
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// IncrementActiveSequences marks the start of a sequence.
func (mp *MetricsProvider) IncrementActiveSequences(ctx context.Context) {
	mp.activeSequences.Add(ctx, 1)
}

// DecrementActiveSequences marks the end of a sequence.
func (mp *MetricsProvider) DecrementActiveSequences(ctx context.Context) {
	mp.activeSequences.Add(ctx, -1)
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordToolChange is a no-op.
func (n *NoopMetricsProvider) RecordToolChange(ctx context.Context, toolchanger, toolName string, success bool, duration time.Duration) {
}

// RecordInitialization is a no-op.
func (n *NoopMetricsProvider) RecordInitialization(ctx context.Context, toolchanger string, success bool, duration time.Duration) {
}

// RecordHook is a no-op.
func (n *NoopMetricsProvider) RecordHook(ctx context.Context, hook string, success bool, duration time.Duration) {
}

// RecordStatusTransition is a no-op.
func (n *NoopMetricsProvider) RecordStatusTransition(ctx context.Context, toolchanger, from, to string) {
}

// RecordError is a no-op.
func (n *NoopMetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
}

// IncrementActiveSequences is a no-op.
func (n *NoopMetricsProvider) IncrementActiveSequences(ctx context.Context) {}

// DecrementActiveSequences is a no-op.
func (n *NoopMetricsProvider) DecrementActiveSequences(ctx context.Context) {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordToolChange(ctx context.Context, toolchanger, toolName string, success bool, duration time.Duration)
	RecordInitialization(ctx context.Context, toolchanger string, success bool, duration time.Duration)
	RecordHook(ctx context.Context, hook string, success bool, duration time.Duration)
	RecordStatusTransition(ctx context.Context, toolchanger, from, to string)
	RecordError(ctx context.Context, errorType string, details map[string]string)
	IncrementActiveSequences(ctx context.Context)
	DecrementActiveSequences(ctx context.Context)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
