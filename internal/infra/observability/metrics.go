package observability

import (
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Terminal states recorded by IncrChatSend.
const (
	SendCompleted = "completed"
	SendFailed    = "failed"
	SendCancelled = "cancelled"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	streamChunks    *prometheus.CounterVec
	chatSends       *prometheus.CounterVec
	anomalies       prometheus.Counter
	storageFailures *prometheus.CounterVec
	streamsInFlight prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		streamChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_chat_stream_chunks_total",
				Help: "Body chunks read from the chat backend.",
			},
			[]string{"mode"},
		),
		chatSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_chat_sends_total",
				Help: "Chat sends by terminal state.",
			},
			[]string{"state"},
		),
		anomalies: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_anomalies_flagged_total",
				Help: "Transactions flagged as anomalous across dashboard builds.",
			},
		),
		storageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_session_storage_failures_total",
				Help: "Session storage operations that failed and were swallowed.",
			},
			[]string{"op"},
		),
		streamsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bfa_chat_streams_in_flight",
				Help: "Chat assemblies currently running.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStreamChunk counts one body chunk; mode is "stream" or "buffered".
func (m *Metrics) IncrStreamChunk(mode string) {
	m.streamChunks.WithLabelValues(mode).Inc()
}

// IncrChatSend counts a send that reached a terminal state.
func (m *Metrics) IncrChatSend(state string) {
	m.chatSends.WithLabelValues(state).Inc()
}

// AddAnomalies adds n flagged transactions.
func (m *Metrics) AddAnomalies(n int) {
	if n > 0 {
		m.anomalies.Add(float64(n))
	}
}

// IncrStorageFailure counts a swallowed session storage failure ("load" or "save").
func (m *Metrics) IncrStorageFailure(op string) {
	m.storageFailures.WithLabelValues(op).Inc()
}

// StreamStarted / StreamFinished track in-flight assemblies.
func (m *Metrics) StreamStarted()  { m.streamsInFlight.Inc() }
func (m *Metrics) StreamFinished() { m.streamsInFlight.Dec() }

// StorageFailures returns the swallowed failure count for op.
func (m *Metrics) StorageFailures(op string) float64 {
	return getCounterValue(m.storageFailures, op)
}

// GetChatSnapshot returns a snapshot of chat metrics suitable for the
// GET /v1/metrics/chat endpoint.
func (m *Metrics) GetChatSnapshot() *domain.ChatMetrics {
	completed := getCounterValue(m.chatSends, SendCompleted)
	failed := getCounterValue(m.chatSends, SendFailed)
	cancelled := getCounterValue(m.chatSends, SendCancelled)
	total := completed + failed + cancelled
	chunks := getCounterValue(m.streamChunks, "stream") + getCounterValue(m.streamChunks, "buffered")
	cacheHits := getCounterValue(m.cacheHits, "dashboard")
	cacheMisses := getCounterValue(m.cacheMisses, "dashboard")

	errorRate := float64(0)
	avgChunks := float64(0)
	cacheHitRate := float64(0)

	if total > 0 {
		errorRate = failed / total
		avgChunks = chunks / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.ChatMetrics{
		TotalSends:       int64(total),
		Completed:        int64(completed),
		Failed:           int64(failed),
		Cancelled:        int64(cancelled),
		ErrorRate:        errorRate,
		ChunksReceived:   int64(chunks),
		AvgChunksPerSend: avgChunks,
		CacheHitRate:     cacheHitRate,
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
