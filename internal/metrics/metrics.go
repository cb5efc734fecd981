package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace_auth"

// Outcome label values shared by the HTTP layer and the auth service.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	AuthEvents    *prometheus.CounterVec
	ProviderCalls *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Auth flow outcomes by operation and outcome code.",
		}, []string{"operation", "outcome"}),
		ProviderCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of identity provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuthEvents,
		m.ProviderCalls,
	)
	return m
}

// AuthEvent counts one outcome of an auth operation (init, callback, refresh, ...).
func (m *Metrics) AuthEvent(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// ObserveProviderCall records the duration of a provider round trip started at start.
func (m *Metrics) ObserveProviderCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := OutcomeSuccess
	if err != nil {
		result = OutcomeError
	}
	m.ProviderCalls.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
