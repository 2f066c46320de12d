// Package metrics exposes Prometheus metrics for the analysis pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "phishing_analyzer"

// Metrics holds the collectors recorded by the pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	analyses       *prometheus.CounterVec
	fallbacks      prometheus.Counter
	modelDuration  *prometheus.HistogramVec
	modelFailures  *prometheus.CounterVec
	analysisScores prometheus.Histogram
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Number of email analyses by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_fallbacks_total",
			Help:      "Number of model responses resolved through the keyword fallback.",
		}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),
		modelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_call_failures_total",
			Help:      "Number of failed model calls.",
		}, []string{"model"}),
		analysisScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_score",
			Help:      "Distribution of risk scores.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50},
		}),
	}

	registry.MustRegister(m.analyses, m.fallbacks, m.modelDuration, m.modelFailures, m.analysisScores)
	return m
}

// ObserveAnalysis records a finished analysis
func (m *Metrics) ObserveAnalysis(outcome string, score int) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
	m.analysisScores.Observe(float64(score))
}

// IncFallback records a response resolved through the keyword fallback
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// ObserveModelCall records the latency and result of a model call
func (m *Metrics) ObserveModelCall(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.modelDuration.WithLabelValues(model).Observe(d.Seconds())
	if err != nil {
		m.modelFailures.WithLabelValues(model).Inc()
	}
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
