package promadapters

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

const counterSuffix = "_total"

// ErrNilRegisterer is returned when NewMetricsCollector gets no Registerer.
var ErrNilRegisterer = errors.New("prometheus registerer must not be nil")

var _ eventstore.MetricsCollector = (*MetricsCollector)(nil)

// MetricsCollector implements eventstore.MetricsCollector on top of Prometheus metric vectors.
type MetricsCollector struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64
	logger     eventstore.Logger

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option configures the MetricsCollector.
type Option func(*MetricsCollector)

// WithNamespace prefixes all metric names with namespace.
func WithNamespace(namespace string) Option {
	return func(mc *MetricsCollector) {
		mc.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(mc *MetricsCollector) {
		mc.buckets = slices.Clone(buckets)
	}
}

// WithLogger receives registration and label mismatch problems at warn level.
func WithLogger(logger eventstore.Logger) Option {
	return func(mc *MetricsCollector) {
		mc.logger = logger
	}
}

// NewMetricsCollector creates a MetricsCollector that registers its vectors on registerer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) (*MetricsCollector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	mc := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	for _, option := range options {
		option(mc)
	}

	return mc, nil
}

// RecordDuration observes duration in seconds on the histogram metric.
func (mc *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	histogram := mc.histogramFor(metric, labels)
	if histogram == nil {
		return
	}

	observer, err := histogram.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		mc.warn("prometheus label mismatch", metric, err)
		return
	}

	observer.Observe(duration.Seconds())
}

// IncrementCounter adds one to the counter metric.
func (mc *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	mc.addToCounter(metric, 1, labels)
}

// RecordValue adds value to the counter metric if the name ends in "_total", otherwise sets the gauge metric.
func (mc *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	if strings.HasSuffix(metric, counterSuffix) {
		mc.addToCounter(metric, value, labels)
		return
	}

	gauge := mc.gaugeFor(metric, labels)
	if gauge == nil {
		return
	}

	g, err := gauge.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		mc.warn("prometheus label mismatch", metric, err)
		return
	}

	g.Set(value)
}

func (mc *MetricsCollector) addToCounter(metric string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}

	counter := mc.counterFor(metric, labels)
	if counter == nil {
		return
	}

	c, err := counter.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		mc.warn("prometheus label mismatch", metric, err)
		return
	}

	c.Add(value)
}

func (mc *MetricsCollector) histogramFor(metric string, labels map[string]string) *prometheus.HistogramVec {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if histogram, ok := mc.histograms[metric]; ok {
		return histogram
	}

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: mc.namespace,
		Name:      metric,
		Help:      "Duration of " + metric,
		Buckets:   mc.buckets,
	}, labelNames(labels))

	registered, ok := register(mc, metric, histogram)
	if !ok {
		return nil
	}

	mc.histograms[metric] = registered

	return registered
}

func (mc *MetricsCollector) counterFor(metric string, labels map[string]string) *prometheus.CounterVec {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if counter, ok := mc.counters[metric]; ok {
		return counter
	}

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: mc.namespace,
		Name:      metric,
		Help:      "Count of " + metric,
	}, labelNames(labels))

	registered, ok := register(mc, metric, counter)
	if !ok {
		return nil
	}

	mc.counters[metric] = registered

	return registered
}

func (mc *MetricsCollector) gaugeFor(metric string, labels map[string]string) *prometheus.GaugeVec {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if gauge, ok := mc.gauges[metric]; ok {
		return gauge
	}

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: mc.namespace,
		Name:      metric,
		Help:      "Last value of " + metric,
	}, labelNames(labels))

	registered, ok := register(mc, metric, gauge)
	if !ok {
		return nil
	}

	mc.gauges[metric] = registered

	return registered
}

// register registers collector, reusing an identical collector that is registered already.
func register[C prometheus.Collector](mc *MetricsCollector, metric string, collector C) (C, bool) {
	if err := mc.registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			if existing, ok := alreadyRegistered.ExistingCollector.(C); ok {
				return existing, true
			}
		}

		mc.warn("prometheus registration failed", metric, err)

		var zero C
		return zero, false
	}

	return collector, true
}

func (mc *MetricsCollector) warn(message, metric string, err error) {
	if mc.logger != nil {
		mc.logger.Warn(message, "metric", metric, "error", err.Error())
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
