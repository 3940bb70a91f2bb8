// Package metrics exposes Prometheus collectors for prescription writes and
// document renders.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rxdesk"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all application collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PrescriptionsCreated prometheus.Counter
	ValidationFailures   prometheus.Counter
	Renders              *prometheus.CounterVec
	RenderDuration       *prometheus.HistogramVec
	RenderBytes          *prometheus.HistogramVec
	Logins               *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		PrescriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescriptions_created_total",
			Help:      "Total prescriptions persisted",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescription_validation_failures_total",
			Help:      "Prescriptions rejected as incomplete",
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Document renders by format and outcome",
		}, []string{"format", "outcome"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Document render duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"format"}),
		RenderBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_size_bytes",
			Help:      "Size of rendered documents",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 10),
		}, []string{"format"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.PrescriptionsCreated,
		m.ValidationFailures,
		m.Renders,
		m.RenderDuration,
		m.RenderBytes,
		m.Logins,
	)
	return m
}

// ObserveRender records one render attempt.
func (m *Metrics) ObserveRender(format string, size int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.Renders.WithLabelValues(format, outcome).Inc()
	m.RenderDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	if err == nil {
		m.RenderBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (m *Metrics) PrescriptionCreated() {
	if m == nil {
		return
	}
	m.PrescriptionsCreated.Inc()
}

func (m *Metrics) ValidationFailed() {
	if m == nil {
		return
	}
	m.ValidationFailures.Inc()
}

// LoginAttempt records a login outcome.
func (m *Metrics) LoginAttempt(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus HTTP handler for g. A nil g serves the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
