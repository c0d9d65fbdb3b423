package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics holds the collectors shared by the HTTP layer, the order workflow
// and the outbox relay.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UseCaseRequests *prometheus.CounterVec
	UseCaseDuration *prometheus.HistogramVec

	OrdersPlaced    prometheus.Counter
	OrdersCancelled prometheus.Counter

	OutboxPublished     prometheus.Counter
	OutboxPublishFailed *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UseCaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usecase_requests_total",
			Help:      "Total number of use case invocations.",
		}, []string{"use_case", "outcome"}),
		UseCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usecase_duration_seconds",
			Help:      "Duration of use case execution in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"use_case"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders successfully created.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders successfully cancelled.",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events published to the broker.",
		}),
		OutboxPublishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failed_total",
			Help:      "Outbox events that failed to publish.",
		}, []string{"event"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequests,
			m.HTTPRequestDuration,
			m.UseCaseRequests,
			m.UseCaseDuration,
			m.OrdersPlaced,
			m.OrdersCancelled,
			m.OutboxPublished,
			m.OutboxPublishFailed,
		)
	}
	return m
}

// NewNop returns unregistered collectors, for tests and tools that do not
// expose /metrics.
func NewNop() *Metrics {
	return New(nil)
}

// ObserveUseCase records one use case execution.
func (m *Metrics) ObserveUseCase(useCase, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.UseCaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.UseCaseDuration.WithLabelValues(useCase).Observe(seconds)
}
