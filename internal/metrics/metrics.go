// Package metrics exposes Prometheus instrumentation for application attempts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoapply"

// Recorder collects engine metrics on its own registry. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	fields       *prometheus.CounterVec
	browsersOpen prometheus.Gauge
	breakerState *prometheus.GaugeVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Application attempts by platform and outcome method.",
		}, []string{"platform", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall-clock duration of application attempts.",
			Buckets:   []float64{0.05, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"platform"}),
		fields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_outcomes_total",
			Help:      "Per-field fill outcomes.",
		}, []string{"platform", "field", "outcome"}),
		browsersOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browsers_open",
			Help:      "Browser processes currently running.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per platform (0 closed, 1 half-open, 2 open).",
		}, []string{"platform"}),
	}
	r.registry.MustRegister(
		r.attempts,
		r.duration,
		r.fields,
		r.browsersOpen,
		r.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveAttempt records a finished attempt.
func (r *Recorder) ObserveAttempt(platform, method string, d time.Duration) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(platform, method).Inc()
	r.duration.WithLabelValues(platform).Observe(d.Seconds())
}

// ObserveField records the outcome of one field step.
func (r *Recorder) ObserveField(platform, field, outcome string) {
	if r == nil {
		return
	}
	r.fields.WithLabelValues(platform, field, outcome).Inc()
}

// BrowserOpened increments the open-browser gauge.
func (r *Recorder) BrowserOpened() {
	if r == nil {
		return
	}
	r.browsersOpen.Inc()
}

// BrowserClosed decrements the open-browser gauge.
func (r *Recorder) BrowserClosed() {
	if r == nil {
		return
	}
	r.browsersOpen.Dec()
}

// SetBreakerState records a breaker state code for platform.
func (r *Recorder) SetBreakerState(platform string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(platform).Set(float64(state))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
