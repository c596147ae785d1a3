// Package metrics provides Prometheus metrics for the lounge MMR service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Rating submissions
	updateItemsApplied *prometheus.CounterVec
	updateBatches      *prometheus.CounterVec
	updateBatchSize    prometheus.Histogram
	signatureFailures  *prometheus.CounterVec
	rateLimited        prometheus.Counter
	totalPlayers       prometheus.Gauge

	// Webhook pipeline
	webhookEvents           *prometheus.CounterVec
	queueCapacity           prometheus.Gauge
	queueSize               prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      *prometheus.CounterVec
	workerActiveCount       prometheus.Gauge
	workerProcessed         prometheus.Counter
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager and the registry it is exposed on.
var (
	globalManager  atomic.Pointer[Manager]             //nolint:gochecknoglobals // singleton metrics manager
	customRegistry atomic.Pointer[prometheus.Registry] //nolint:gochecknoglobals // metrics registry
)

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before serving /metrics.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	m := NewManager(opts...)
	customRegistry.Store(registry)
	globalManager.Store(m)
}

func current() *Manager { return globalManager.Load() }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "lounge",
		subsystem:        "mmr",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.updateItemsApplied = auto.NewCounterVec(
		m.counterOpts("update_items_applied_total", "Rating changes committed to the store, by result (win/loss)"),
		[]string{"result"},
	)
	m.updateBatches = auto.NewCounterVec(
		m.counterOpts("update_batches_total", "Update batches received, by outcome"),
		[]string{"outcome"},
	)
	m.updateBatchSize = auto.NewHistogram(
		m.histogramOpts("update_batch_size_items", "Number of items per update batch", prometheus.ExponentialBuckets(1, 2, 10)),
	)
	m.signatureFailures = auto.NewCounterVec(
		m.counterOpts("signature_failures_total", "Rejected signatures by endpoint and reason"),
		[]string{"endpoint", "reason"},
	)
	m.rateLimited = auto.NewCounter(
		m.counterOpts("rate_limited_total", "Requests rejected by the inbound rate limiter"),
	)
	m.totalPlayers = auto.NewGauge(
		m.gaugeOpts("total_players", "Number of player records in the store"),
	)

	m.webhookEvents = auto.NewCounterVec(
		m.counterOpts("webhook_events_total", "Webhook deliveries by outcome"),
		[]string{"outcome"},
	)
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum webhook queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current webhook queue length"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Webhook events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Webhook events dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("queue_enqueue_errors_total", "Failed enqueue attempts by reason"),
		[]string{"reason"},
	)
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running webhook workers"))
	m.workerProcessed = auto.NewCounter(m.counterOpts("worker_processed_total", "Webhook events handled by workers"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Webhook handler failures"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Webhook handler latency in milliseconds", nil),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_latency_milliseconds", "Player store operation latency in milliseconds", nil),
		[]string{"backend", "operation"},
	)
	m.repositoryErrors = auto.NewCounterVec(
		m.counterOpts("repository_errors_total", "Player store failures (not-found excluded)"),
		[]string{"backend", "operation"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", nil),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordUpdateApplied counts one committed rating change.
func RecordUpdateApplied(win bool) {
	result := "loss"
	if win {
		result = "win"
	}
	current().updateItemsApplied.WithLabelValues(result).Inc()
}

// RecordUpdateBatch counts a finished batch and observes its size.
func RecordUpdateBatch(outcome string, items int) {
	current().updateBatches.WithLabelValues(outcome).Inc()
	current().updateBatchSize.Observe(float64(items))
}

// RecordSignatureFailure counts a rejected signature.
func RecordSignatureFailure(endpoint, reason string) {
	current().signatureFailures.WithLabelValues(endpoint, reason).Inc()
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited() {
	current().rateLimited.Inc()
}

// UpdateTotalPlayers sets the player count gauge.
func UpdateTotalPlayers(count int) {
	current().totalPlayers.Set(float64(count))
}

// RecordWebhookEvent counts a webhook delivery by outcome.
func RecordWebhookEvent(outcome string) {
	current().webhookEvents.WithLabelValues(outcome).Inc()
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	current().queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	current().queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	current().queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	current().queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError(reason string) {
	current().queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	current().workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessed counts a handled webhook event and its latency.
func RecordWorkerProcessed(latencyMs float64) {
	current().workerProcessed.Inc()
	current().workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	current().workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	current().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	current().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryLatency observes one store operation.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	current().repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordRepositoryError counts a failed store operation.
func RecordRepositoryError(backend, operation string) {
	current().repositoryErrors.WithLabelValues(backend, operation).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	current().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	current().errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	current().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	current().errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	current().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	current().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	current().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry.Load()
}
