// Package metrics provides Prometheus metrics for the rehearsal planner service.
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

// Result sources for computations.
const (
	SourceCache   = "cache"
	SourceCompute = "compute"
)

// latencyBucketsMs covers sub-millisecond sweeps up to slow store round trips.
var latencyBucketsMs = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // immutable bucket layout

// Manager manages all Prometheus metrics for the planner service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Planner metrics
	computations      *prometheus.CounterVec
	computeLatency    prometheus.Histogram
	slotsEmitted      prometheus.Counter
	invalidIntervals  prometheus.Counter
	groupsTracked     prometheus.Gauge
	availabilityWrite prometheus.Counter

	// Cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors prometheus.Counter

	// Refresh queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	refreshEnqueued  prometheus.Counter
	refreshCoalesced prometheus.Counter
	refreshDropped   prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Notification metrics
	notificationsPublished prometheus.Counter
	notificationErrors     prometheus.Counter

	// Store metrics
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rehearsal",
		subsystem:        "planner",
		histogramBuckets: latencyBucketsMs,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.computations = m.counterVec("computations_total", "Optimal-time answers served, by source (cache or compute)", "source")
	m.computeLatency = m.histogram("compute_latency_ms", "Time to load availability and rank a group's week", m.histogramBuckets)
	m.slotsEmitted = m.counter("slots_emitted_total", "Coverage slots produced by the sweep")
	m.invalidIntervals = m.counter("invalid_intervals_total", "Availability records rejected as invalid intervals")
	m.groupsTracked = m.gauge("groups_tracked", "Groups with a computed ranking since start")
	m.availabilityWrite = m.counter("availability_writes_total", "Availability replacements accepted")

	m.cacheHits = m.counter("cache_hits_total", "Ranking cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Ranking cache misses")
	m.cacheErrors = m.counter("cache_errors_total", "Ranking cache failures")

	m.queueSize = m.gauge("refresh_queue_size", "Refresh jobs waiting in the queue")
	m.queueCapacity = m.gauge("refresh_queue_capacity", "Refresh queue capacity")
	m.queueUtilization = m.gauge("refresh_queue_utilization", "Refresh queue fill ratio (0-1)")
	m.refreshEnqueued = m.counter("refresh_enqueued_total", "Refresh jobs enqueued")
	m.refreshCoalesced = m.counter("refresh_coalesced_total", "Refresh requests absorbed by a pending job")
	m.refreshDropped = m.counter("refresh_dropped_total", "Refresh jobs rejected by backpressure")

	m.workerCount = m.gauge("worker_count", "Refresh workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_ms", "Refresh job processing time", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Refresh jobs that failed")

	m.notificationsPublished = m.counter("notifications_published_total", "Ranking update notifications published")
	m.notificationErrors = m.counter("notification_errors_total", "Ranking update notifications that failed")

	m.storeQueryLatency = m.histogramVec("store_query_latency_ms", "Availability store query latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Availability store failures", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_ms", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Goroutines running")
	m.systemGCPauseTime = m.histogram("system_gc_pause_ms", "Average GC pause", m.histogramBuckets)
}

// Planner metrics.

// RecordComputation counts an answer served from source (SourceCache or SourceCompute).
func RecordComputation(source string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.computations.WithLabelValues(source).Inc()
	}
}

// RecordComputeLatency records the end-to-end compute time in milliseconds.
func RecordComputeLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.computeLatency.Observe(latencyMs)
	}
}

// RecordSlotsEmitted adds n emitted slots.
func RecordSlotsEmitted(n int) {
	if globalManager != nil && globalManager.enabled && n > 0 {
		globalManager.slotsEmitted.Add(float64(n))
	}
}

// RecordInvalidInterval counts a rejected availability record.
func RecordInvalidInterval() {
	if globalManager != nil && globalManager.enabled {
		globalManager.invalidIntervals.Inc()
	}
}

// UpdateGroupsTracked sets the number of groups with a computed ranking.
func UpdateGroupsTracked(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.groupsTracked.Set(float64(count))
	}
}

// RecordAvailabilityWrite counts an accepted availability replacement.
func RecordAvailabilityWrite() {
	if globalManager != nil && globalManager.enabled {
		globalManager.availabilityWrite.Inc()
	}
}

// Cache metrics.

// RecordCacheHit counts a cache hit.
func RecordCacheHit() {
	if globalManager != nil && globalManager.enabled {
		globalManager.cacheHits.Inc()
	}
}

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss() {
	if globalManager != nil && globalManager.enabled {
		globalManager.cacheMisses.Inc()
	}
}

// RecordCacheError counts a cache failure.
func RecordCacheError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.cacheErrors.Inc()
	}
}

// Refresh queue metrics.

// UpdateQueueSize sets the refresh queue length.
func UpdateQueueSize(size int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the refresh queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the refresh queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordRefreshEnqueued counts an enqueued refresh job.
func RecordRefreshEnqueued() {
	if globalManager != nil && globalManager.enabled {
		globalManager.refreshEnqueued.Inc()
	}
}

// RecordRefreshCoalesced counts a refresh request absorbed by a pending job.
func RecordRefreshCoalesced() {
	if globalManager != nil && globalManager.enabled {
		globalManager.refreshCoalesced.Inc()
	}
}

// RecordRefreshDropped counts a refresh job rejected by backpressure.
func RecordRefreshDropped() {
	if globalManager != nil && globalManager.enabled {
		globalManager.refreshDropped.Inc()
	}
}

// Worker metrics.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records one job's processing time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a failed refresh job.
func RecordWorkerError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// Notification metrics.

// RecordNotificationPublished counts a published notification.
func RecordNotificationPublished() {
	if globalManager != nil && globalManager.enabled {
		globalManager.notificationsPublished.Inc()
	}
}

// RecordNotificationError counts a failed notification.
func RecordNotificationError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.notificationErrors.Inc()
	}
}

// Store metrics.

// RecordStoreQueryLatency records an availability store call in milliseconds.
func RecordStoreQueryLatency(operation string, latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// RecordStoreError counts a failed availability store call.
func RecordStoreError(operation string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeErrors.WithLabelValues(operation).Inc()
	}
}

// HTTP metrics.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Error metrics.

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// Init rebuilds the global manager from opts on a fresh registry. Call it
// once at startup, before /metrics is registered and before any recording.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// GetRegistry returns the custom registry the global manager records into.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns how often gauge updaters should sample.
func RefreshInterval() time.Duration {
	if globalManager == nil {
		return defaultRefreshInterval
	}
	return globalManager.refreshInterval
}
