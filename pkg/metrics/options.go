// Package metrics provides Prometheus metrics for the Solara prediction service.
package metrics

import (
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "solara" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem overrides the "predictor" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the pipeline,
// model, artifact, HTTP and worker latency histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 && slices.IsSorted(buckets) {
			m.latencyBuckets = slices.Clone(buckets)
		}
	}
}

// WithEfficiencyBuckets sets the buckets of the efficiency forecast
// histogram. Plants with a different AC/irradiation scale need wider ones.
func WithEfficiencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 && slices.IsSorted(buckets) {
			m.efficiencyBuckets = slices.Clone(buckets)
		}
	}
}

// WithMetricsEnabled enables or disables metrics collection.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) { m.enabled = enabled }
}

// WithRefreshInterval sets how often callers should refresh gauges.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithConstLabels attaches labels such as the plant id to every metric.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if len(labels) > 0 {
			m.constLabels = maps.Clone(labels)
		}
	}
}

// WithMetricPrefix prefixes every metric name.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.metricPrefix = prefix
		}
	}
}

// WithPrometheusRegistry registers the metrics on registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
