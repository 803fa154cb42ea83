// Package otel provides OpenTelemetry metrics integration for sysagent.
package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds meter configuration. Both Enabled and an
// exporter other than ExporterNone are required before anything is
// collected.
type MetricsConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType

	// OTLPEndpoint is the collector endpoint for the OTLP exporters,
	// host:port without a scheme.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are resource attributes attached to every metric.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a disabled meter configuration.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "sysagent",
		ExporterType: ExporterNone,
	}
}

// Metrics owns the meter provider and the instruments the agent loop
// records on. Record methods on an instance without instruments are
// no-ops.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error
	mu            sync.RWMutex

	catalogSize     atomic.Int64
	catalogGauge    metric.Int64ObservableGauge
	catalogGaugeReg metric.Registration

	operationLatency metric.Float64Histogram
	errorCounter     metric.Int64Counter
	activeSessions   metric.Int64UpDownCounter
	turnCounter      metric.Int64Counter
	fallbackCounter  metric.Int64Counter
}

// NewMetrics builds a Metrics instance from cfg. A nil or disabled
// cfg yields a no-op instance whose Shutdown does nothing.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := buildResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

func newMetricExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		var opts []otlpmetricgrpc.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		var opts []otlpmetrichttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// registerInstruments creates the instrument set. Latency is recorded
// in milliseconds to line up with the event log durations.
func (m *Metrics) registerInstruments() error {
	var err error

	m.operationLatency, err = m.meter.Float64Histogram(
		"sysagent.operation.latency",
		metric.WithDescription("Latency of tool operation invocations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("operation latency histogram: %w", err)
	}

	m.errorCounter, err = m.meter.Int64Counter(
		"sysagent.errors",
		metric.WithDescription("Count of errors by category"),
	)
	if err != nil {
		return fmt.Errorf("error counter: %w", err)
	}

	m.activeSessions, err = m.meter.Int64UpDownCounter(
		"sysagent.sessions.active",
		metric.WithDescription("Number of active agent sessions"),
	)
	if err != nil {
		return fmt.Errorf("active sessions counter: %w", err)
	}

	m.turnCounter, err = m.meter.Int64Counter(
		"sysagent.turns",
		metric.WithDescription("Count of agent planning round trips"),
	)
	if err != nil {
		return fmt.Errorf("turn counter: %w", err)
	}

	m.fallbackCounter, err = m.meter.Int64Counter(
		"sysagent.fallbacks",
		metric.WithDescription("Count of deterministic fallback engagements"),
	)
	if err != nil {
		return fmt.Errorf("fallback counter: %w", err)
	}

	m.catalogGauge, err = m.meter.Int64ObservableGauge(
		"sysagent.catalog.size",
		metric.WithDescription("Number of operations in the tool catalog"),
	)
	if err != nil {
		return fmt.Errorf("catalog gauge: %w", err)
	}

	m.catalogGaugeReg, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.catalogGauge, m.catalogSize.Load())
			return nil
		},
		m.catalogGauge,
	)
	if err != nil {
		return fmt.Errorf("catalog gauge callback: %w", err)
	}

	return nil
}

// RecordOperationLatency records one tool call round trip.
func (m *Metrics) RecordOperationLatency(ctx context.Context, operation string, latencyMs float64, success bool) {
	if m.operationLatency == nil {
		return
	}

	m.operationLatency.Record(ctx, latencyMs, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	))
}

// RecordError counts one error under the given category.
func (m *Metrics) RecordError(ctx context.Context, category string) {
	if m.errorCounter == nil {
		return
	}

	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// IncrementSessions counts a session start.
func (m *Metrics) IncrementSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// DecrementSessions counts a session end.
func (m *Metrics) DecrementSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}

// RecordTurn counts one planning round trip.
func (m *Metrics) RecordTurn(ctx context.Context) {
	if m.turnCounter == nil {
		return
	}
	m.turnCounter.Add(ctx, 1)
}

// RecordFallback counts one deterministic fallback engagement.
func (m *Metrics) RecordFallback(ctx context.Context) {
	if m.fallbackCounter == nil {
		return
	}
	m.fallbackCounter.Add(ctx, 1)
}

// SetCatalogSize stores the catalog size read by the gauge callback.
func (m *Metrics) SetCatalogSize(n int) {
	m.catalogSize.Store(int64(n))
}

// Shutdown flushes pending metrics and releases the exporter.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalogGaugeReg != nil {
		if err := m.catalogGaugeReg.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister catalog callback: %w", err)
		}
	}

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled reports whether metrics are actually collected.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// SetGlobalMetrics installs m as the process-wide metrics instance.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m

	if m != nil && m.Enabled() {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// GetGlobalMetrics returns the instance installed with
// SetGlobalMetrics, or a no-op instance when none has been.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()

	if globalMetrics == nil {
		return NoopMetrics()
	}
	return globalMetrics
}

// NoopMetrics returns a metrics instance that records nothing.
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
