// Package promadapters provides a Prometheus implementation of eventstore.MetricsCollector.
//
// Metric vectors are created on first use, with the label names of that first call.
// Durations become histograms in seconds, counters become counters, and values are
// added to counters when the name ends in "_total" and set on gauges otherwise.
package promadapters
