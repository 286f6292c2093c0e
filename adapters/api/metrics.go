package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds the Prometheus collectors of one server. Each server
// owns its registry so several can coexist in one process.
type serverMetrics struct {
	registry *prometheus.Registry

	// analysesTotal counts analysis requests.
	// Labels: status (ok, invalid, error)
	analysesTotal *prometheus.CounterVec

	// analysisDuration measures end-to-end analysis latency.
	analysisDuration prometheus.Histogram

	// metricsComputed counts computed metrics.
	// Labels: method
	metricsComputed *prometheus.CounterVec

	// degradedFits counts metrics whose covariate fit fell back to no adjustment.
	degradedFits prometheus.Counter
}

func newServerMetrics() *serverMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &serverMetrics{
		registry: reg,
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "variatio",
			Name:      "analyses_total",
			Help:      "Total analysis requests by outcome",
		}, []string{"status"}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "variatio",
			Name:      "analysis_duration_seconds",
			Help:      "Analysis request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		metricsComputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "variatio",
			Name:      "metrics_computed_total",
			Help:      "Total computed metrics by significance method",
		}, []string{"method"}),
		degradedFits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "variatio",
			Name:      "degraded_fits_total",
			Help:      "Total metrics computed without covariate adjustment after a failed fit",
		}),
	}
}
