package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RankRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_rank_requests_total",
		Help: "Total number of ranking requests",
	})
	RankDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parking_rank_duration_ms",
		Help:    "Ranking duration in milliseconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200},
	})
	RankEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_rank_empty_total",
		Help: "Total number of rankings with no candidate within radius",
	})
	DatasetRowsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_dataset_segments",
		Help: "Segments in the active spatial index",
	})
	DatasetRowsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_dataset_rows_dropped_total",
		Help: "Dataset rows dropped because no coordinate could be derived",
	}, []string{"reason"})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_geocode_cache_hits_total",
		Help: "Geocode cache hits",
	})
	GeocodeCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_geocode_cache_misses_total",
		Help: "Geocode cache misses",
	})
	GeocodeCacheExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_geocode_cache_expired_total",
		Help: "Geocode cache entries found but expired",
	})
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_geocoder_requests_total",
		Help: "Total geocoder lookups",
	}, []string{"provider"})
	ProviderSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_geocoder_success_total",
		Help: "Geocoder lookups returning an in-region result",
	}, []string{"provider"})
	ProviderFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_geocoder_fail_total",
		Help: "Geocoder lookups failing, empty or out of region",
	}, []string{"provider", "reason"})
	ProviderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parking_geocoder_duration_ms",
		Help:    "Geocoder lookup duration in milliseconds",
		Buckets: []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 4000},
	}, []string{"provider"})
	ProviderHeartbeatTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_geocoder_heartbeat_total",
		Help: "Geocoder heartbeat count by status",
	}, []string{"provider", "status"})
	ResolveOutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_resolve_outcome_total",
		Help: "Origin resolutions by strategy or failure kind",
	}, []string{"outcome"})
	IntentRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_intent_requests_total",
		Help: "Intent extraction requests by backend and status",
	}, []string{"backend", "status"})
	IntentDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parking_intent_duration_ms",
		Help:    "Intent extraction duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 2000, 5000, 10000, 20000},
	})
)

func init() {
	prometheus.MustRegister(RankRequestsTotal)
	prometheus.MustRegister(RankDurationMs)
	prometheus.MustRegister(RankEmptyTotal)
	prometheus.MustRegister(DatasetRowsLoaded)
	prometheus.MustRegister(DatasetRowsDroppedTotal)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeCacheMissesTotal)
	prometheus.MustRegister(GeocodeCacheExpiredTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderSuccessTotal)
	prometheus.MustRegister(ProviderFailTotal)
	prometheus.MustRegister(ProviderDurationMs)
	prometheus.MustRegister(ProviderHeartbeatTotal)
	prometheus.MustRegister(ResolveOutcomeTotal)
	prometheus.MustRegister(IntentRequestsTotal)
	prometheus.MustRegister(IntentDurationMs)
}

// 文档注释：返回 Prometheus 指标监听器，由主入口挂载到 {API_BASE}/metrics
func Handler() http.Handler { return promhttp.Handler() }
