// Package metrics provides Prometheus metrics for the calculation server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the server.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Calculation metrics
	calculationRuns     *prometheus.CounterVec
	calculationDuration *prometheus.HistogramVec
	predictionsWritten  prometheus.Counter
	allianceFailures    *prometheus.CounterVec

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Run request metrics
	runRequests          *prometheus.CounterVec
	runRequestsCoalesced *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// Worker metrics
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter
	workerRetries prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "calcserver",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.calculationRuns = auto.NewCounterVec(
		m.counterOpts("calculation_runs_total", "Calculator runs by calculator and outcome"),
		[]string{"calculator", "status"},
	)
	m.calculationDuration = auto.NewHistogramVec(
		m.histogramOpts("calculation_run_duration_milliseconds", "Duration of a full calculator run in milliseconds"),
		[]string{"calculator"},
	)
	m.predictionsWritten = auto.NewCounter(
		m.counterOpts("predictions_written_total", "Derived prediction records upserted"),
	)
	m.allianceFailures = auto.NewCounterVec(
		m.counterOpts("alliance_failures_total", "Alliances skipped during a run by failure class"),
		[]string{"class"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_latency_milliseconds", "Document store operation latency in milliseconds"),
		[]string{"operation"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Document store operation failures"),
		[]string{"operation"},
	)

	m.runRequests = auto.NewCounterVec(
		m.counterOpts("run_requests_total", "Calculator run requests enqueued by watched collection"),
		[]string{"collection"},
	)
	m.runRequestsCoalesced = auto.NewCounterVec(
		m.counterOpts("run_requests_coalesced_total", "Change notifications absorbed by an already pending run"),
		[]string{"calculator"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Run requests waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum run requests the queue holds"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("queue_enqueue_errors_total", "Rejected enqueue attempts by reason"),
		[]string{"reason"},
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Workers draining the run queue"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Runs that still failed after retries"))
	m.workerRetries = auto.NewCounter(m.counterOpts("worker_retries_total", "Calculator runs retried after a failure"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Live goroutines"))
}

// Calculation Metrics Functions.

// RecordCalculationRun counts one finished run of calculator with status "ok" or "error".
func RecordCalculationRun(calculator, status string) {
	globalManager.calculationRuns.WithLabelValues(calculator, status).Inc()
}

// RecordCalculationDuration observes a run duration.
func RecordCalculationDuration(calculator string, durationMs float64) {
	globalManager.calculationDuration.WithLabelValues(calculator).Observe(durationMs)
}

// RecordPredictionWritten counts an upserted derived record.
func RecordPredictionWritten() {
	globalManager.predictionsWritten.Inc()
}

// RecordAllianceFailure counts a skipped alliance.
func RecordAllianceFailure(class string) {
	globalManager.allianceFailures.WithLabelValues(class).Inc()
}

// Store Metrics Functions.

// RecordStoreLatency observes the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// Run Request Metrics Functions.

// RecordRunRequest counts a run request caused by a change to collection.
func RecordRunRequest(collection string) {
	globalManager.runRequests.WithLabelValues(collection).Inc()
}

// RecordRunRequestCoalesced counts a notification folded into a pending run.
func RecordRunRequestCoalesced(calculator string) {
	globalManager.runRequestsCoalesced.WithLabelValues(calculator).Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the number of queued run requests.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError counts a run that failed after all retries.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerRetry counts a retried run.
func RecordWorkerRetry() {
	globalManager.workerRetries.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry the global metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
