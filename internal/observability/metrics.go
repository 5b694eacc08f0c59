package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "odata_chart"

// Metrics holds the Prometheus counters, histograms, and gauges for chart runs.
type Metrics struct {
	FetchRequests *prometheus.CounterVec   // labels: resource, outcome={success,transport_error,decode_error}
	FetchRetries  *prometheus.CounterVec   // labels: resource
	FetchDuration *prometheus.HistogramVec // labels: resource
	RowsEnriched  *prometheus.CounterVec   // labels: dataset

	Runs             *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration      prometheus.Histogram
	LastSuccess      prometheus.Gauge
	SeriesRendered   prometheus.Gauge
	ExportsCompleted *prometheus.CounterVec // labels: exporter, outcome
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      help("OData requests by resource and outcome."),
		}, []string{"resource", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      help("OData request retries after a transport error."),
		}, []string{"resource"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("OData request duration including body decode."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"resource"}),
		RowsEnriched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_enriched_total",
			Help:      help("Fact rows joined against their lookup tables."),
		}, []string{"dataset"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      help("Completed chart runs by outcome."),
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      help("Duration of a full fetch-aggregate-render run."),
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      help("Unix time of the last successful run."),
		}),
		SeriesRendered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_rendered",
			Help:      help("Number of series in the last rendered chart."),
		}),
		ExportsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      help("Exporter invocations by exporter and outcome."),
		}, []string{"exporter", "outcome"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.RowsEnriched,
		m.Runs,
		m.RunDuration,
		m.LastSuccess,
		m.SeriesRendered,
		m.ExportsCompleted,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
