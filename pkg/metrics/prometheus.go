// Package metrics provides Prometheus metrics for the raidledger service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Scoring pipeline metrics.
	computations        prometheus.Counter
	computeDuration     prometheus.Histogram
	categoryFetchErrors *prometheus.CounterVec
	upstreamDuration    prometheus.Histogram

	// Snapshot lifecycle metrics.
	snapshotLocks    prometheus.Counter
	snapshotUnlocks  prometheus.Counter
	lockConflicts    prometheus.Counter
	entryEdits       prometheus.Counter
	driftFallbacks   *prometheus.CounterVec
	snapshotRebuilds prometheus.Counter

	// Notifier metrics.
	notificationsPublished prometheus.Counter
	streamClients          prometheus.Gauge

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "raidledger",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.computations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "computations_total",
		Help:      "Total number of scoreboard computations.",
	})
	m.computeDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_duration_seconds",
		Help:      "Duration of full scoreboard computations.",
		Buckets:   m.histogramBuckets,
	})
	m.categoryFetchErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "category_fetch_errors_total",
		Help:      "Upstream category fetches degraded to empty datasets.",
	}, []string{"category"})
	m.upstreamDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of upstream dataset requests.",
		Buckets:   m.histogramBuckets,
	})

	m.snapshotLocks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "snapshot",
		Name:      "locks_total",
		Help:      "Snapshot lock transitions (Computed to Manual).",
	})
	m.snapshotUnlocks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "snapshot",
		Name:      "unlocks_total",
		Help:      "Snapshot unlock transitions (Manual to Computed).",
	})
	m.lockConflicts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "snapshot",
		Name:      "lock_conflicts_total",
		Help:      "Racing lock or unlock attempts rejected.",
	})
	m.entryEdits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "snapshot",
		Name:      "entry_edits_total",
		Help:      "Per-entry snapshot upserts applied.",
	})
	m.driftFallbacks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "snapshot",
		Name:      "drift_fallbacks_total",
		Help:      "Drift fallback executions by stage (synthesize, relock).",
	}, []string{"stage"})
	m.snapshotRebuilds = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "snapshot",
		Name:      "rebuilds_total",
		Help:      "Full unlock+relock snapshot rebuilds.",
	})

	m.notificationsPublished = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "notify",
		Name:      "published_total",
		Help:      "Change notifications published to the stream broker.",
	})
	m.streamClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "notify",
		Name:      "stream_clients",
		Help:      "Currently connected update-stream subscribers.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by endpoint and method.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method"})
}

// Handler returns the HTTP handler exposing the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// Package-level recording helpers backed by the global manager.

func RecordComputation(seconds float64) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.computations.Inc()
	globalManager.computeDuration.Observe(seconds)
}

func RecordCategoryFetchError(category string) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.categoryFetchErrors.WithLabelValues(category).Inc()
}

func RecordUpstreamDuration(seconds float64) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.upstreamDuration.Observe(seconds)
}

func RecordSnapshotLock() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.snapshotLocks.Inc()
}

func RecordSnapshotUnlock() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.snapshotUnlocks.Inc()
}

func RecordLockConflict() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.lockConflicts.Inc()
}

func RecordEntryEdit() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.entryEdits.Inc()
}

func RecordDriftFallback(stage string) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.driftFallbacks.WithLabelValues(stage).Inc()
}

func RecordSnapshotRebuild() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.snapshotRebuilds.Inc()
}

func RecordNotificationPublished() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.notificationsPublished.Inc()
}

func StreamClientConnected() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.streamClients.Inc()
}

func StreamClientDisconnected() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.streamClients.Dec()
}

func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, seconds float64) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(seconds)
}
