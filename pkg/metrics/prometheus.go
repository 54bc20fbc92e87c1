// Package metrics provides Prometheus metrics for the arcade hub and the scoring service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector exported by the process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Game sessions
	sessionsStarted *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sessionsEvicted prometheus.Counter
	engineOutcomes  *prometheus.CounterVec
	engineInputs    *prometheus.CounterVec
	reactionLatency prometheus.Histogram
	timerCallbacks  *prometheus.CounterVec

	// Score submission
	submissions       *prometheus.CounterVec
	submissionLatency *prometheus.HistogramVec
	submissionsBusy   prometheus.Gauge

	// Read models
	cacheLookups  *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec

	// Dispatch queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueRejected    *prometheus.CounterVec
	workerCount      prometheus.Gauge
	workerJobLatency prometheus.Histogram

	// Scoring service storage
	storedScores *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	storeRecords prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arcade",
		subsystem:        "hub",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsStarted = m.counterVec("sessions_started_total", "Game sessions created, by game", "game")
	m.sessionsActive = m.gauge("sessions_active", "Game sessions currently held by the hub")
	m.sessionsEvicted = m.counter("sessions_evicted_total", "Idle game sessions closed by the sweeper")
	m.engineOutcomes = m.counterVec("engine_outcomes_total", "Terminal outcomes reached by engines", "game", "outcome")
	m.engineInputs = m.counterVec("engine_inputs_total", "Input events applied to engines", "game", "applied")
	m.reactionLatency = m.histogram("reaction_time_milliseconds", "Measured reaction times",
		[]float64{100, 150, 200, 250, 300, 400, 500, 750, 1000})
	m.timerCallbacks = m.counterVec("timer_callbacks_total", "Delayed callbacks fired or cancelled", "game", "result")

	m.submissions = m.counterVec("submissions_total", "Score submissions by game and result", "game", "result")
	m.submissionLatency = m.histogramVec("submission_latency_milliseconds", "Remote score submission latency", "game")
	m.submissionsBusy = m.gauge("submissions_in_flight", "Score submissions awaiting the remote service")

	m.cacheLookups = m.counterVec("cache_lookups_total", "Read model cache lookups", "view", "result")
	m.remoteCalls = m.counterVec("remote_calls_total", "Calls to the scoring service", "operation", "result")
	m.remoteLatency = m.histogramVec("remote_call_latency_milliseconds", "Scoring service call latency", "operation")

	m.queueSize = m.gauge("dispatch_queue_size", "Submission jobs waiting for a worker")
	m.queueCapacity = m.gauge("dispatch_queue_capacity", "Maximum submission jobs the queue accepts")
	m.queueRejected = m.counterVec("dispatch_queue_rejected_total", "Submission jobs rejected by the queue", "reason")
	m.workerCount = m.gauge("dispatch_workers", "Submission workers running")
	m.workerJobLatency = m.histogram("dispatch_job_latency_milliseconds", "Time a worker spent on one job", m.histogramBuckets)

	m.storedScores = m.counterVec("stored_scores_total", "Scores appended by the scoring service", "game")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Score store operation latency", "operation")
	m.storeRecords = m.gauge("store_records", "Scores held by the store")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Goroutines running")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordSessionStarted counts a new session for game.
func RecordSessionStarted(game string) {
	globalManager.sessionsStarted.WithLabelValues(game).Inc()
}

// UpdateSessionsActive sets the number of live sessions.
func UpdateSessionsActive(n int) {
	globalManager.sessionsActive.Set(float64(n))
}

// RecordSessionEvicted counts a session closed for inactivity.
func RecordSessionEvicted() {
	globalManager.sessionsEvicted.Inc()
}

// RecordEngineOutcome counts a terminal outcome.
func RecordEngineOutcome(game, outcome string) {
	globalManager.engineOutcomes.WithLabelValues(game, outcome).Inc()
}

// RecordEngineInput counts an input event and whether it changed state.
func RecordEngineInput(game string, applied bool) {
	label := "ignored"
	if applied {
		label = "applied"
	}
	globalManager.engineInputs.WithLabelValues(game, label).Inc()
}

// RecordReactionTime observes a measured reaction.
func RecordReactionTime(ms int64) {
	globalManager.reactionLatency.Observe(float64(ms))
}

// RecordTimerCallback counts a delayed callback with result fired, stale or cancelled.
func RecordTimerCallback(game, result string) {
	globalManager.timerCallbacks.WithLabelValues(game, result).Inc()
}

// RecordSubmission counts a submission result: success, unauthenticated, invalid, remote_failure, backpressure.
func RecordSubmission(game, result string) {
	globalManager.submissions.WithLabelValues(game, result).Inc()
}

// RecordSubmissionLatency observes a remote submission latency.
func RecordSubmissionLatency(game string, d time.Duration) {
	globalManager.submissionLatency.WithLabelValues(game).Observe(float64(d.Milliseconds()))
}

// AddSubmissionsInFlight moves the in-flight gauge by delta.
func AddSubmissionsInFlight(delta int) {
	globalManager.submissionsBusy.Add(float64(delta))
}

// RecordCacheLookup counts a read model cache hit or miss.
func RecordCacheLookup(view string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(view, result).Inc()
}

// RecordRemoteCall counts and times a scoring service call.
func RecordRemoteCall(operation, result string, d time.Duration) {
	globalManager.remoteCalls.WithLabelValues(operation, result).Inc()
	globalManager.remoteLatency.WithLabelValues(operation).Observe(float64(d.Milliseconds()))
}

// UpdateQueueSize sets the dispatch queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the dispatch queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a job the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of dispatch workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJobLatency observes how long a worker spent on a job.
func RecordWorkerJobLatency(d time.Duration) {
	globalManager.workerJobLatency.Observe(float64(d.Milliseconds()))
}

// RecordStoredScore counts an appended score.
func RecordStoredScore(game string) {
	globalManager.storedScores.WithLabelValues(game).Inc()
}

// UpdateStoreRecords sets the number of scores held.
func UpdateStoreRecords(n int) {
	globalManager.storeRecords.Set(float64(n))
}

// RecordStoreLatency observes a store operation.
func RecordStoreLatency(operation string, d time.Duration) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(float64(d.Microseconds()) / 1000)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// GetRegistry returns the process registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Value sums every sample of the named metric family in the process registry
// whose labels include all of match. Histograms contribute their sample count.
func Value(name string, match map[string]string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGather, err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !labelsMatch(metric.GetLabel(), match) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return total, nil
}

func labelsMatch(pairs []*dto.LabelPair, match map[string]string) bool {
	for k, v := range match {
		found := false
		for _, p := range pairs {
			if p.GetName() == k && p.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
