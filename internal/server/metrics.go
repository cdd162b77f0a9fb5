package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Collectors
// =============================================================================

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "labelgrid_requests_total",
		Help: "Total HTTP requests by route and status class",
	}, []string{"route", "status"})
	requestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "labelgrid_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	placementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "labelgrid_placements_total",
		Help: "Placed features by outcome",
	}, []string{"outcome"})
	placeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "labelgrid_place_duration_ms",
		Help:    "Placement run duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "labelgrid_sessions_active",
		Help: "Currently live sessions",
	})
	sessionEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelgrid_session_evictions_total",
		Help: "Sessions evicted by TTL or capacity",
	})
	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelgrid_cache_hits_total",
		Help: "Result cache hits",
	})
	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelgrid_cache_misses_total",
		Help: "Result cache misses",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDurationMs)
	prometheus.MustRegister(placementsTotal)
	prometheus.MustRegister(placeDurationMs)
	prometheus.MustRegister(sessionsActive)
	prometheus.MustRegister(sessionEvictionsTotal)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// =============================================================================
// Hook Adapters
// =============================================================================

// metricsPlacementHooks feeds placement outcomes into Prometheus.
type metricsPlacementHooks struct{}

func (metricsPlacementHooks) OnPlaceStart(context.Context, string, int) {}

func (metricsPlacementHooks) OnPlaceComplete(_ context.Context, _ string, committed, suppressed int, d time.Duration, err error) {
	if err != nil {
		return
	}
	placementsTotal.WithLabelValues("committed").Add(float64(committed))
	placementsTotal.WithLabelValues("suppressed").Add(float64(suppressed))
	placeDurationMs.Observe(float64(d.Milliseconds()))
}

// metricsSessionHooks tracks the live session gauge and evictions.
type metricsSessionHooks struct{}

func (metricsSessionHooks) OnSessionCreate(context.Context, string) { sessionsActive.Inc() }
func (metricsSessionHooks) OnSessionClose(context.Context, string)  { sessionsActive.Dec() }
func (metricsSessionHooks) OnSessionEvict(context.Context, string) {
	sessionsActive.Dec()
	sessionEvictionsTotal.Inc()
}

// metricsCacheHooks counts result-cache traffic.
type metricsCacheHooks struct{}

func (metricsCacheHooks) OnCacheHit(context.Context, string)      { cacheHitsTotal.Inc() }
func (metricsCacheHooks) OnCacheMiss(context.Context, string)     { cacheMissesTotal.Inc() }
func (metricsCacheHooks) OnCacheSet(context.Context, string, int) {}
