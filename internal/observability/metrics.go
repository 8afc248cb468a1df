package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// recall ingestion pipeline.
type Metrics struct {
	FetchRequests  *prometheus.CounterVec // labels: outcome={success,empty,transient_error,malformed_error}
	FetchRetries   prometheus.Counter
	FetchFallbacks prometheus.Counter
	APIDuration    prometheus.Histogram

	RecordsFetched prometheus.Counter
	RecordsDropped prometheus.Counter

	DatasetBuilds  *prometheus.CounterVec // labels: source={live,fallback,cache}
	BuildDuration  prometheus.Histogram
	DatasetCache   *prometheus.CounterVec // labels: result={hit,miss}
	FallbackActive prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchFallbacks,
		m.APIDuration,
		m.RecordsFetched,
		m.RecordsDropped,
		m.DatasetBuilds,
		m.BuildDuration,
		m.DatasetCache,
		m.FallbackActive,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "fetch_requests_total",
			Help:      "openFDA fetch attempts by outcome.",
		}, []string{"outcome"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "fetch_retries_total",
			Help:      "Total retries after transient fetch failures.",
		}),
		FetchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "fetch_fallbacks_total",
			Help:      "Total dataset builds that fell back to the bundled sample.",
		}),
		APIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recall_analytics",
			Name:      "api_request_duration_seconds",
			Help:      "openFDA API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "records_fetched_total",
			Help:      "Raw recall records obtained from the API or fallback.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "records_dropped_total",
			Help:      "Records dropped during normalization (unparseable dates).",
		}),
		DatasetBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "dataset_builds_total",
			Help:      "Dataset builds by source.",
		}, []string{"source"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recall_analytics",
			Name:      "dataset_build_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-classify cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DatasetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall_analytics",
			Name:      "dataset_cache_total",
			Help:      "Dataset cache lookups by result.",
		}, []string{"result"}),
		FallbackActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "recall_analytics",
			Name:      "fallback_active",
			Help:      "1 when the most recent dataset build used the fallback sample.",
		}),
	}
}
