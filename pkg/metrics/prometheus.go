// Package metrics provides Prometheus metrics for the Solara prediction service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Prediction outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Manager manages all Prometheus metrics for the Solara service.
type Manager struct {
	namespace         string
	subsystem         string
	latencyBuckets    []float64
	efficiencyBuckets []float64
	enabled           bool
	refreshInterval   time.Duration
	constLabels       map[string]string
	metricPrefix      string
	registry          prometheus.Registerer

	// Pipeline metrics
	predictions        *prometheus.CounterVec
	predictionLatency  prometheus.Histogram
	modelLatency       *prometheus.HistogramVec
	anomaliesFlagged   prometheus.Counter
	riskLevels         *prometheus.CounterVec
	rowsRemoved        *prometheus.CounterVec
	artifactLoads      *prometheus.CounterVec
	artifactLoadTime   prometheus.Histogram
	registryReady      prometheus.Gauge
	efficiencyForecast prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Stream metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	streamMessages   *prometheus.CounterVec
	workerCount      prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrors     prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:         "solara",
		subsystem:         "predictor",
		latencyBuckets:    []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		efficiencyBuckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.5, 2, 5, 10, 25},
		enabled:           true,
		refreshInterval:   defaultRefreshInterval,
		constLabels:       make(map[string]string),
		registry:          prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(base string) string {
	if m.metricPrefix == "" {
		return base
	}
	return m.metricPrefix + "_" + base
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("predictions_total"),
		Help:        "Total number of prediction requests by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.predictionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("prediction_latency_milliseconds"),
		Help:        "End-to-end pipeline latency from cleaning to assembled result",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.modelLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("model_inference_latency_milliseconds"),
		Help:        "Inference latency per model artifact",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	}, []string{"model"})

	m.anomaliesFlagged = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("anomalies_flagged_total"),
		Help:        "Total number of readings labelled anomalous",
		ConstLabels: labels,
	})

	m.riskLevels = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("risk_level_total"),
		Help:        "Predicted failure risk levels",
		ConstLabels: labels,
	}, []string{"level"})

	m.rowsRemoved = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cleaning_rows_removed_total"),
		Help:        "Rows dropped by the cleaning stage, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.artifactLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("artifact_loads_total"),
		Help:        "Model artifact load attempts by result",
		ConstLabels: labels,
	}, []string{"result"})

	m.artifactLoadTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("artifact_load_duration_milliseconds"),
		Help:        "Time spent loading the scaler and model artifacts",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.registryReady = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("registry_ready"),
		Help:        "1 when all artifacts are loaded and cached",
		ConstLabels: labels,
	})

	m.efficiencyForecast = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("efficiency_prediction"),
		Help:        "Distribution of predicted next-step efficiency",
		Buckets:     m.efficiencyBuckets,
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.latencyBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_size"),
		Help:        "Current number of readings waiting to be scored",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_capacity"),
		Help:        "Maximum number of queued readings",
		ConstLabels: labels,
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_utilization_ratio"),
		Help:        "Queue size divided by capacity",
		ConstLabels: labels,
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueued_total"),
		Help:        "Readings accepted into the queue",
		ConstLabels: labels,
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_dequeued_total"),
		Help:        "Readings handed to workers",
		ConstLabels: labels,
	})

	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_rejected_total"),
		Help:        "Readings refused by the queue, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.streamMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stream_messages_total"),
		Help:        "Stream messages consumed, by result",
		ConstLabels: labels,
	}, []string{"result"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_count"),
		Help:        "Number of stream scoring workers",
		ConstLabels: labels,
	})

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_processing_latency_milliseconds"),
		Help:        "Time for a worker to score and publish one reading",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_errors_total"),
		Help:        "Readings a worker failed to score or publish",
		ConstLabels: labels,
	})

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "HTTP errors by endpoint, method and type",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RecordPrediction counts a finished prediction with the given outcome.
func RecordPrediction(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictions.WithLabelValues(outcome).Inc()
}

// RecordPredictionLatency records the full pipeline latency.
func RecordPredictionLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordModelLatency records inference latency for a single model.
func RecordModelLatency(model string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.modelLatency.WithLabelValues(model).Observe(latencyMs)
}

// RecordPredictionResult tracks what the models said about a reading.
func RecordPredictionResult(efficiency float64, anomalous bool, riskLevel string) {
	if !globalManager.enabled {
		return
	}
	globalManager.efficiencyForecast.Observe(efficiency)
	if anomalous {
		globalManager.anomaliesFlagged.Inc()
	}
	globalManager.riskLevels.WithLabelValues(riskLevel).Inc()
}

// RecordRowsRemoved counts rows dropped by the cleaning stage.
func RecordRowsRemoved(reason string, count int) {
	if !globalManager.enabled || count <= 0 {
		return
	}
	globalManager.rowsRemoved.WithLabelValues(reason).Add(float64(count))
}

// RecordArtifactLoad records an artifact load attempt and its duration.
func RecordArtifactLoad(success bool, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	globalManager.artifactLoads.WithLabelValues(result).Inc()
	globalManager.artifactLoadTime.Observe(latencyMs)
}

// UpdateRegistryReady flips the readiness gauge.
func UpdateRegistryReady(ready bool) {
	v := 0.0
	if ready {
		v = 1
	}
	globalManager.registryReady.Set(v)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected counts a reading the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordStreamMessage counts a consumed stream message by result.
func RecordStreamMessage(result string) {
	globalManager.streamMessages.WithLabelValues(result).Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
