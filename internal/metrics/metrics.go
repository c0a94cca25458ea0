package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonebuf_queries_total",
		Help: "Total zone queries by kind",
	}, []string{"kind"})
	DecodeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonebuf_decode_failures_total",
		Help: "Total failed decodes by error kind",
	}, []string{"reason"})
	ZonesDecodedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonebuf_zones_decoded_total",
		Help: "Total zones decoded",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonebuf_cache_hits_total",
		Help: "Total query cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonebuf_cache_misses_total",
		Help: "Total query cache misses",
	})
	DecodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zonebuf_decode_duration_ms",
		Help:    "Zone buffer decode duration in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
	})
)

func init() {
	Registry.MustRegister(
		QueriesTotal,
		DecodeFailuresTotal,
		ZonesDecodedTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		DecodeDurationMs,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
