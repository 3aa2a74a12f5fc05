// Package metrics exposes Prometheus instrumentation for the HTTP API and
// the recommendation paths.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fertilizer"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	Recommendations     *prometheus.CounterVec
	Signups             *prometheus.CounterVec
	Logins              *prometheus.CounterVec
	ClassifierLoaded    prometheus.Gauge
	RulesLoaded         prometheus.Gauge
}

// New creates the collectors and registers them with Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		Recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Recommendation requests by source (rules, model) and outcome",
			},
			[]string{"source", "outcome"},
		),

		Signups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signups_total",
				Help:      "Signup attempts by outcome",
			},
			[]string{"outcome"},
		),

		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),

		ClassifierLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "classifier_loaded",
				Help:      "1 when a classifier artifact is loaded, 0 otherwise",
			},
		),

		RulesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules_loaded",
				Help:      "Number of recommendation rules in the in-memory snapshot",
			},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRecommendation records a recommendation outcome for source.
func (m *Metrics) RecordRecommendation(source, outcome string) {
	m.Recommendations.WithLabelValues(source, outcome).Inc()
}

// RecordSignup records a signup outcome.
func (m *Metrics) RecordSignup(ok bool) {
	m.Signups.WithLabelValues(outcome(ok)).Inc()
}

// RecordLogin records a login outcome.
func (m *Metrics) RecordLogin(ok bool) {
	m.Logins.WithLabelValues(outcome(ok)).Inc()
}

// SetClassifierLoaded sets the classifier availability gauge.
func (m *Metrics) SetClassifierLoaded(loaded bool) {
	if loaded {
		m.ClassifierLoaded.Set(1)
		return
	}
	m.ClassifierLoaded.Set(0)
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
