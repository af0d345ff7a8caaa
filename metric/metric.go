// Package metric exposes service instrumentation on a dedicated
// Prometheus registry so tests can create isolated instances.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service instruments.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal       *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	BusyTotal        prometheus.Counter
	TurnDuration     prometheus.Histogram
	ModelDuration    prometheus.Histogram
}

// New creates a metrics set on a fresh registry. inFlight and sessions
// are sampled on scrape and may be nil.
func New(inFlight, sessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cybercj",
			Name:      "turns_total",
			Help:      "Completed tutoring turns by outcome.",
		}, []string{"outcome"}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cybercj",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
		BusyTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cybercj",
			Name:      "busy_rejections_total",
			Help:      "Requests rejected by the concurrency gate.",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cybercj",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ModelDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cybercj",
			Name:      "model_call_duration_seconds",
			Help:      "Model completion call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	if inFlight != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cybercj",
			Name:      "in_flight_turns",
			Help:      "Turns currently holding a model slot.",
		}, inFlight)
	}
	if sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cybercj",
			Name:      "active_sessions",
			Help:      "Live sessions in the store.",
		}, sessions)
	}

	return m
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
