// Package metrics provides Prometheus metrics for the attendance points service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Workflow
	claimsSubmitted *prometheus.CounterVec
	claimsResolved  *prometheus.CounterVec
	claimsDeleted   prometheus.Counter
	claimsSkipped   prometheus.Counter

	// Engine
	pointsAwarded     *prometheus.HistogramVec
	awardsCapped      prometheus.Counter
	outOfSeasonAwards prometheus.Counter
	defaultedLookups  *prometheus.CounterVec
	scoringErrors     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	participants      prometheus.Gauge
	pendingClaims     prometheus.Gauge

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton manager behind package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps Go runtime collectors out of /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "acolyte",
		subsystem:        "points",
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.claimsSubmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "claims_submitted_total",
		Help:      "Claims written by submission, by path and initial status",
	}, []string{"path", "status", "resubmission"})

	m.claimsResolved = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "claims_resolved_total",
		Help:      "Pending claims moved to approved or rejected",
	}, []string{"status"})

	m.claimsDeleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "claims_deleted_total",
		Help:      "Claims removed by delete or purge",
	})

	m.claimsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "claims_skipped_total",
		Help:      "Self submissions ignored because the schedule entry does not exist",
	})

	m.pointsAwarded = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "points_awarded",
		Help:      "Distribution of computed point values",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 10},
	}, []string{"path", "tier"})

	m.awardsCapped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "awards_capped_total",
		Help:      "Awards clamped by the daily maximum",
	})

	m.outOfSeasonAwards = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "out_of_season_total",
		Help:      "Computations that returned zero because the date is outside the active season",
	})

	m.defaultedLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "defaulted_lookups_total",
		Help:      "Lookups that fell back to a default value",
	}, []string{"kind"})

	m.scoringErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_errors_total",
		Help:      "Point computations that failed on a collaborator error",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.rateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_rate_limited_total",
		Help:      "Submissions rejected by the per-participant rate limiter",
	})

	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Store query latency in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store queries that returned an error",
	}, []string{"query"})

	m.participants = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "participants",
		Help:      "Ranked participants as of the last stats read",
	})

	m.pendingClaims = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_claims",
		Help:      "Claims awaiting moderation as of the last stats read",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordClaimSubmitted counts a claim written by a submission path ("self", "manual").
func RecordClaimSubmitted(path, status string, resubmission bool) {
	if !globalManager.enabled {
		return
	}
	r := "false"
	if resubmission {
		r = "true"
	}
	globalManager.claimsSubmitted.WithLabelValues(path, status, r).Inc()
}

// RecordClaimResolved counts an approve or reject transition.
func RecordClaimResolved(status string) {
	if !globalManager.enabled {
		return
	}
	globalManager.claimsResolved.WithLabelValues(status).Inc()
}

// RecordClaimsDeleted adds n removed claims.
func RecordClaimsDeleted(n int64) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.claimsDeleted.Add(float64(n))
}

// RecordClaimSkipped counts a self submission against a missing schedule entry.
func RecordClaimSkipped() {
	if !globalManager.enabled {
		return
	}
	globalManager.claimsSkipped.Inc()
}

// RecordPointsAwarded observes a computed point value.
func RecordPointsAwarded(path, tier string, points int) {
	if !globalManager.enabled {
		return
	}
	globalManager.pointsAwarded.WithLabelValues(path, tier).Observe(float64(points))
}

// RecordAwardCapped counts a clamped award.
func RecordAwardCapped() {
	if !globalManager.enabled {
		return
	}
	globalManager.awardsCapped.Inc()
}

// RecordOutOfSeason counts a zero award caused by the season gate.
func RecordOutOfSeason() {
	if !globalManager.enabled {
		return
	}
	globalManager.outOfSeasonAwards.Inc()
}

// RecordDefaultedLookup counts a fallback; kind is "event_type", "season" or "setting".
func RecordDefaultedLookup(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.defaultedLookups.WithLabelValues(kind).Inc()
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() {
	if !globalManager.enabled {
		return
	}
	globalManager.scoringErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a throttled submission.
func RecordRateLimited() {
	if !globalManager.enabled {
		return
	}
	globalManager.rateLimited.Inc()
}

// RecordStoreQuery observes the latency of a named store query.
func RecordStoreQuery(query string, latencyMs float64, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeQueryLatency.WithLabelValues(query).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(query).Inc()
	}
}

// UpdateParticipants sets the ranked participants gauge.
func UpdateParticipants(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.participants.Set(float64(count))
}

// UpdatePendingClaims sets the pending claims gauge.
func UpdatePendingClaims(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.pendingClaims.Set(float64(count))
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetEnabled toggles recording through the package-level helpers.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
