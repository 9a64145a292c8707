package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_submissions_total",
			Help: "Total client record submissions",
		},
		[]string{"result"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reference_cache_hits_total",
			Help: "Reference data served from cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reference_cache_misses_total",
			Help: "Reference data loaded from the store",
		},
	)

	CacheRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reference_cache_refreshes_total",
			Help: "Manual reference cache invalidations",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheRefreshes)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
