package oteladapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

const counterSuffix = "_total"

var (
	_ eventstore.MetricsCollector           = (*MetricsCollector)(nil)
	_ eventstore.ContextualMetricsCollector = (*MetricsCollector)(nil)
)

// MetricsCollector implements eventstore.ContextualMetricsCollector with instruments of an OpenTelemetry meter.
// Instruments are created on first use and reused afterwards.
type MetricsCollector struct {
	meter  metric.Meter
	logger eventstore.Logger

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Float64Counter
	gauges     map[string]metric.Float64Gauge
}

// MetricsOption configures the MetricsCollector.
type MetricsOption func(*MetricsCollector)

// WithMetricsLogger receives instrument creation failures at warn level.
func WithMetricsLogger(logger eventstore.Logger) MetricsOption {
	return func(m *MetricsCollector) {
		m.logger = logger
	}
}

// NewMetricsCollector creates a MetricsCollector on top of meter.
// A nil meter is accepted, nothing is recorded then.
func NewMetricsCollector(meter metric.Meter, options ...MetricsOption) *MetricsCollector {
	m := &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Float64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

// RecordDurationContext records duration in seconds, ctx links the measurement to the active span.
func (m *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {

	histogram := m.histogram(metricName)
	if histogram == nil {
		return
	}

	histogram.Record(ctx, duration.Seconds(), withAttributes(labels))
}

func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

// IncrementCounterContext adds one to the counter.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	counter := m.counter(metricName)
	if counter == nil {
		return
	}

	counter.Add(ctx, 1, withAttributes(labels))
}

func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordValueContext adds value to a counter if metricName ends in "_total", otherwise it sets a gauge.
func (m *MetricsCollector) RecordValueContext(
	ctx context.Context,
	metricName string,
	value float64,
	labels map[string]string,
) {

	if strings.HasSuffix(metricName, counterSuffix) {
		counter := m.counter(metricName)
		if counter == nil || value < 0 {
			return
		}

		counter.Add(ctx, value, withAttributes(labels))
		return
	}

	gauge := m.gauge(metricName)
	if gauge == nil {
		return
	}

	gauge.Record(ctx, value, withAttributes(labels))
}

func (m *MetricsCollector) histogram(name string) metric.Float64Histogram {
	if m.meter == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, ok := m.histograms[name]; ok {
		return histogram
	}

	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription("EventStore operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		m.warn(name, err)
		return nil
	}

	m.histograms[name] = histogram

	return histogram
}

func (m *MetricsCollector) counter(name string) metric.Float64Counter {
	if m.meter == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, ok := m.counters[name]; ok {
		return counter
	}

	counter, err := m.meter.Float64Counter(name, metric.WithDescription("EventStore operation counter"))
	if err != nil {
		m.warn(name, err)
		return nil
	}

	m.counters[name] = counter

	return counter
}

func (m *MetricsCollector) gauge(name string) metric.Float64Gauge {
	if m.meter == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, ok := m.gauges[name]; ok {
		return gauge
	}

	gauge, err := m.meter.Float64Gauge(name, metric.WithDescription("EventStore current value"))
	if err != nil {
		m.warn(name, err)
		return nil
	}

	m.gauges[name] = gauge

	return gauge
}

func (m *MetricsCollector) warn(name string, err error) {
	if m.logger != nil {
		m.logger.Warn("otel instrument creation failed", "metric", name, "error", err.Error())
	}
}

func withAttributes(labels map[string]string) metric.MeasurementOption {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		kvs = append(kvs, attribute.String(key, value))
	}

	return metric.WithAttributeSet(attribute.NewSet(kvs...))
}
