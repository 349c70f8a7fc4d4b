// Package metrics exports evaluator and optimizer activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

const namespace = "tyche"

var (
	_ evaluation.Observer = (*Recorder)(nil)
	_ optimizer.Observer  = (*Recorder)(nil)
)

// Recorder observes evaluations and optimizer runs on its own registry
type Recorder struct {
	registry *prometheus.Registry

	evaluations        prometheus.Counter
	evaluationDuration prometheus.Histogram
	samples            prometheus.Counter
	excluded           prometheus.Counter

	optimizations        *prometheus.CounterVec
	optimizationDuration *prometheus.HistogramVec
	oracleEvaluations    *prometheus.CounterVec
}

// NewRecorder creates a new Recorder with Go runtime and process collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completed portfolio evaluations.",
		}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of one portfolio evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Monte Carlo samples evaluated.",
		}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "excluded_cells_total",
			Help:      "Sample cells excluded for non-finite metric values.",
		}),
		optimizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "Optimizer runs by strategy and exit code.",
		}, []string{"strategy", "exit_code"}),
		optimizationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimization_duration_seconds",
			Help:      "Wall time of one optimizer run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
		}, []string{"strategy"}),
		oracleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_evaluations_total",
			Help:      "Objective evaluations made by the optimizer.",
		}, []string{"strategy"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.evaluations, r.evaluationDuration, r.samples, r.excluded,
		r.optimizations, r.optimizationDuration, r.oracleEvaluations,
	)
	return r
}

// ObserveEvaluation records one completed evaluation
func (r *Recorder) ObserveEvaluation(elapsed time.Duration, samples, excluded int) {
	r.evaluations.Inc()
	r.evaluationDuration.Observe(elapsed.Seconds())
	r.samples.Add(float64(samples))
	r.excluded.Add(float64(excluded))
}

// ObserveOptimization records one completed optimizer run
func (r *Recorder) ObserveOptimization(strategy string, exit domain.ExitCode, elapsed time.Duration, evaluations int) {
	r.optimizations.WithLabelValues(strategy, string(exit)).Inc()
	r.optimizationDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	r.oracleEvaluations.WithLabelValues(strategy).Add(float64(evaluations))
}

// Registry returns the registry the recorder's collectors live on
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
