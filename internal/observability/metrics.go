package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// render pipeline.
type Metrics struct {
	UnitsProcessed  *prometheus.CounterVec // labels: kind={zone_head,zone_balance,zones_summary,well,wells_summary,classification,map}, outcome={ok,error}
	ChartsRendered  prometheus.Counter
	PassDuration    prometheus.Histogram
	PassesTotal     *prometheus.CounterVec // labels: outcome={ok,error}
	PipelineRunning prometheus.Gauge

	// Classification and geometry metrics.
	WellClassCount    *prometheus.GaugeVec // labels: class
	GeometriesSkipped prometheus.Counter

	// Upstream retrieval metrics.
	RetrievalDuration *prometheus.HistogramVec // labels: endpoint
	RetrievalErrors   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UnitsProcessed,
		m.ChartsRendered,
		m.PassDuration,
		m.PassesTotal,
		m.PipelineRunning,
		m.WellClassCount,
		m.GeometriesSkipped,
		m.RetrievalDuration,
		m.RetrievalErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can construct pipelines repeatedly without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_charts",
			Name:      "units_processed_total",
			Help:      "Logical units processed per render pass, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_charts",
			Name:      "charts_rendered_total",
			Help:      "Total chart artifacts written to the output directory.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydro_charts",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a complete render pass.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_charts",
			Name:      "passes_total",
			Help:      "Completed render passes by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro_charts",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		WellClassCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hydro_charts",
			Name:      "well_class_count",
			Help:      "Wells per percentile band after the latest classification.",
		}, []string{"class"}),
		GeometriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_charts",
			Name:      "geometries_skipped_total",
			Help:      "Zone geometries dropped because normalization failed.",
		}),
		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydro_charts",
			Name:      "retrieval_duration_seconds",
			Help:      "Upstream API request duration by endpoint.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		RetrievalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_charts",
			Name:      "retrieval_errors_total",
			Help:      "Failed upstream API requests.",
		}),
	}
}
