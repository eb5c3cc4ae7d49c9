// Package oteladapters connects the observability interfaces of the eventstore package to OpenTelemetry.
//
// MetricsCollector maps durations to histograms, counters to counters, and values ending in "_total"
// to counters as well, all other values to gauges. TracingCollector creates one span per operation.
// The loggers correlate log records with the active span of the context.
package oteladapters
