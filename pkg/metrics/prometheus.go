// Package metrics centralizes Prometheus instrumentation for the capture
// service: ingest counters, queue gauges, per-analyzer latencies, and HTTP
// request metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Default manager configuration constants.
const (
	defaultNamespace = "stride"

	latencyBucketStartMs = 0.05
	latencyBucketFactor  = 2
	latencyBucketCount   = 12
	durationBucketStartS = 0.001
	durationBucketFactor = 2.5
	durationBucketCount  = 10
)

// Manager owns the registry and all metric vectors.
type Manager struct {
	registry *prometheus.Registry

	samplesIngested  *prometheus.CounterVec
	samplesDropped   *prometheus.CounterVec
	stepsDetected    prometheus.Counter
	batchDuplicates  prometheus.Counter
	analyzerLatency  *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueEnqueueErrs prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	mqttPublished    prometheus.Counter
	mqttErrors       prometheus.Counter
	componentErrors  *prometheus.CounterVec
	memoryUsage      prometheus.Gauge
	goroutineCount   prometheus.Gauge
}

var (
	manager *Manager
	once    sync.Once
)

// NewManager creates a metrics manager with its own registry.
func NewManager(opts ...Option) *Manager {
	ns := defaultNamespace
	for _, opt := range opts {
		ns = opt(ns)
	}

	m := &Manager{registry: prometheus.NewRegistry()}

	m.samplesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "samples_ingested_total",
		Help: "Samples accepted for processing, by kind (frame, imu).",
	}, []string{"kind"})
	m.samplesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "samples_dropped_total",
		Help: "Samples dropped before processing, by reason.",
	}, []string{"reason"})
	m.stepsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "steps_detected_total",
		Help: "Steps accepted by the IMU step detector.",
	})
	m.batchDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "ingest_batch_duplicates_total",
		Help: "Ingest batches acknowledged as duplicates.",
	})
	m.analyzerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "analyzer_latency_ms",
		Help:    "Per-call analyzer compute latency in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(latencyBucketStartMs, latencyBucketFactor, latencyBucketCount),
	}, []string{"analyzer"})
	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "active_sessions",
		Help: "Currently active capture sessions.",
	})
	m.queueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "sample_queue_size",
		Help: "Queued samples awaiting processing.",
	})
	m.queueCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "sample_queue_capacity",
		Help: "Configured sample queue capacity.",
	})
	m.queueUtilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "sample_queue_utilization",
		Help: "Sample queue fill ratio, 0-1.",
	})
	m.queueEnqueues = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "sample_queue_enqueues_total",
		Help: "Successful sample enqueues.",
	})
	m.queueDequeues = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "sample_queue_dequeues_total",
		Help: "Samples handed to the session worker.",
	})
	m.queueEnqueueErrs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "sample_queue_enqueue_errors_total",
		Help: "Enqueue failures (backpressure, closed queue).",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method, and status code.",
	}, []string{"endpoint", "method", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(durationBucketStartS, durationBucketFactor, durationBucketCount),
	}, []string{"endpoint", "method"})
	m.mqttPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "mqtt_snapshots_published_total",
		Help: "Metric snapshots published to MQTT.",
	})
	m.mqttErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "mqtt_publish_errors_total",
		Help: "MQTT publish failures.",
	})
	m.componentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "component_errors_total",
		Help: "Errors by component and type.",
	}, []string{"component", "type"})
	m.memoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "memory_usage_bytes",
		Help: "Allocated heap bytes.",
	})
	m.goroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "goroutine_count",
		Help: "Live goroutines.",
	})

	m.registry.MustRegister(
		m.samplesIngested, m.samplesDropped, m.stepsDetected, m.batchDuplicates,
		m.analyzerLatency, m.activeSessions,
		m.queueSize, m.queueCapacity, m.queueUtilization,
		m.queueEnqueues, m.queueDequeues, m.queueEnqueueErrs,
		m.httpRequests, m.httpDuration,
		m.mqttPublished, m.mqttErrors, m.componentErrors,
		m.memoryUsage, m.goroutineCount,
	)
	return m
}

// get returns the global manager, creating it on first use.
func get() *Manager {
	once.Do(func() {
		if manager == nil {
			manager = NewManager()
		}
	})
	return manager
}

// GetRegistry exposes the registry for the /metrics handler.
func GetRegistry() *prometheus.Registry {
	return get().registry
}

// Package-level recording helpers.

func RecordSampleIngested(kind string) { get().samplesIngested.WithLabelValues(kind).Inc() }
func RecordSampleDropped(reason string) {
	get().samplesDropped.WithLabelValues(reason).Inc()
}
func RecordStepDetected()   { get().stepsDetected.Inc() }
func RecordBatchDuplicate() { get().batchDuplicates.Inc() }

func RecordAnalyzerLatency(analyzer string, latencyMs float64) {
	get().analyzerLatency.WithLabelValues(analyzer).Observe(latencyMs)
}

func UpdateActiveSessions(count int) { get().activeSessions.Set(float64(count)) }

func UpdateQueueSize(size int)            { get().queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)    { get().queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(util float64) { get().queueUtilization.Set(util) }
func RecordQueueEnqueue()                 { get().queueEnqueues.Inc() }
func RecordQueueDequeue()                 { get().queueDequeues.Inc() }
func RecordQueueEnqueueError()            { get().queueEnqueueErrs.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	get().httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, seconds float64) {
	get().httpDuration.WithLabelValues(endpoint, method).Observe(seconds)
}

func RecordMQTTPublish()      { get().mqttPublished.Inc() }
func RecordMQTTPublishError() { get().mqttErrors.Inc() }

func RecordErrorByComponent(component, errorType string) {
	get().componentErrors.WithLabelValues(component, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) { get().memoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { get().goroutineCount.Set(float64(n)) }
