// Package metrics exposes grid progress as Prometheus collectors. A batch run
// has no scrape endpoint, so the registry is written to a node-exporter
// textfile at the end of each run.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FlavioCFOliveira/rollcast/internal/grid"
)

const namespace = "rollcast"

// Recorder owns a private registry so several recorders (tests, repeated
// scheduled runs) never collide on the default one.
type Recorder struct {
	reg *prometheus.Registry

	outcomes *prometheus.CounterVec
	elapsed  prometheus.Histogram
	steps    prometheus.Counter
	bestRMSE prometheus.Gauge
	runs     prometheus.Counter
	lastRun  prometheus.Gauge
}

// New registers the grid collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "configurations_total",
			Help:      "Configurations run, by outcome status",
		}, []string{"status"}),
		elapsed: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "configuration_duration_seconds",
			Help:      "Wall time of one configuration: fit plus rolling forecast",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "steps_total",
			Help:      "Walk-forward steps forecast",
		}),
		bestRMSE: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "best_rmse",
			Help:      "RMSE of the best configuration of the last run; NaN if none was finite",
		}),
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed grid runs",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last grid run finished",
		}),
	}
}

// Registry returns the underlying registry, e.g. for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveOutcome records one finished configuration.
func (r *Recorder) ObserveOutcome(o grid.Outcome) {
	r.outcomes.WithLabelValues(o.Status.String()).Inc()
	r.elapsed.Observe(o.Elapsed.Seconds())
	r.steps.Add(float64(len(o.Predicted)))
}

// FinishRun records the end of a grid run and the best RMSE found.
func (r *Recorder) FinishRun(outcomes []grid.Outcome) {
	best := math.NaN()
	if o, ok := grid.Best(outcomes); ok {
		best = o.Metrics.RMSE
	}
	r.bestRMSE.Set(best)
	r.runs.Inc()
	r.lastRun.SetToCurrentTime()
}

// WriteTextfile writes the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
