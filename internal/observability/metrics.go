package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the seed-time pipeline.
type Metrics struct {
	RecordsLoaded   prometheus.Counter
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram
	Runs            *prometheus.CounterVec // labels: status={success,error,skipped}

	// Conversion metrics.
	Conversions    *prometheus.CounterVec   // labels: outcome={success,error}
	OracleCache    *prometheus.CounterVec   // labels: result={hit,miss}
	OracleDuration *prometheus.HistogramVec // labels: op={open,convert,close}

	// Publish metrics.
	SheetsPublished *prometheus.CounterVec // labels: sink
	PublishErrors   *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsLoaded,
		m.PipelineRunning,
		m.RunDuration,
		m.Runs,
		m.Conversions,
		m.OracleCache,
		m.OracleDuration,
		m.SheetsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seedtime",
			Name:      "records_loaded_total",
			Help:      "Total roster rows read from input files.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seedtime",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seedtime",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete normalize-assemble-publish run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedtime",
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedtime",
			Name:      "conversions_total",
			Help:      "Altitude conversions by outcome.",
		}, []string{"outcome"}),
		OracleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedtime",
			Name:      "oracle_cache_total",
			Help:      "Conversion cache lookups by result.",
		}, []string{"result"}),
		OracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seedtime",
			Name:      "oracle_duration_seconds",
			Help:      "Conversion oracle call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		SheetsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedtime",
			Name:      "sheets_published_total",
			Help:      "Event sheets written, by sink.",
		}, []string{"sink"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedtime",
			Name:      "publish_errors_total",
			Help:      "Failed sheet writes, by sink.",
		}, []string{"sink"}),
	}
}
