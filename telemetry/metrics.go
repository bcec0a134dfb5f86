package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics wraps the Prometheus counters and histograms produced by the
// get-or-compute core, grounded on the promauto shape used by
// github.com/nobletooth/kiwi's block cache (cacheLookups/cacheEvictedBlocks).
type Metrics struct {
	hits            *prometheus.CounterVec
	misses          *prometheus.CounterVec
	writes          *prometheus.CounterVec
	factoryDuration prometheus.Histogram
	lockWait        prometheus.Histogram
	factoryTimeouts *prometheus.CounterVec
}

// NewMetrics registers a fresh set of metrics against reg. Pass
// prometheus.DefaultRegisterer to expose them via promhttp.Handler().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits, by tier and whether the value was served stale under grace.",
		}, []string{"store", "graced"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses, by tier.",
		}, []string{"store"}),
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of cache writes, by tier.",
		}, []string{"store"}),
		factoryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_factory_duration_seconds",
			Help:    "Wall-clock duration of factory invocations.",
			Buckets: prometheus.DefBuckets,
		}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_lock_wait_seconds",
			Help:    "Time spent waiting to acquire the per-key lock.",
			Buckets: prometheus.DefBuckets,
		}),
		factoryTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_factory_timeouts_total",
			Help: "Total number of factory timeouts, by kind (soft|hard).",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveHit(store string, graced bool) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(store, boolLabel(graced)).Inc()
}

func (m *Metrics) ObserveMiss(store string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(store).Inc()
}

func (m *Metrics) ObserveWrite(store string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(store).Inc()
}

func (m *Metrics) ObserveFactoryDuration(seconds float64) {
	if m == nil {
		return
	}
	m.factoryDuration.Observe(seconds)
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

func (m *Metrics) ObserveFactoryTimeout(kind string) {
	if m == nil {
		return
	}
	m.factoryTimeouts.WithLabelValues(kind).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
