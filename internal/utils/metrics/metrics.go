package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Inbound provider webhooks
	InboundWebhooksTotal *prometheus.CounterVec
	SettlementsTotal     *prometheus.CounterVec

	// Outbound deliveries
	DeliveryAttemptsTotal *prometheus.CounterVec
	DeliveryDuration      *prometheus.HistogramVec

	// Queue
	QueueInFlight      prometheus.Gauge
	QueueRetriesTotal  *prometheus.CounterVec
	QueueDeadJobsTotal *prometheus.CounterVec

	// Cart reminders
	RemindersTotal *prometheus.CounterVec

	// Post-commit domain events
	EventHandlerFailuresTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered on reg.
// A nil reg registers on the default registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "checkout"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		InboundWebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inbound",
				Name:      "webhooks_total",
				Help:      "Provider notifications by outcome",
			},
			[]string{"outcome"}, // processed, duplicate, ignored, not_found, rejected, failed
		),
		SettlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "transitions_total",
				Help:      "Committed order settlements by target status",
			},
			[]string{"status"},
		),

		DeliveryAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "delivery",
				Name:      "attempts_total",
				Help:      "Outbound webhook delivery attempts",
			},
			[]string{"event", "result"}, // result: success, failure
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "delivery",
				Name:      "duration_seconds",
				Help:      "Outbound webhook delivery duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"event"},
		),

		QueueInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "jobs_in_flight",
				Help:      "Jobs currently being handled",
			},
		),
		QueueRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "retries_total",
				Help:      "Jobs re-scheduled after a failed attempt",
			},
			[]string{"kind"},
		),
		QueueDeadJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "jobs_dead_total",
				Help:      "Jobs dropped after exhausting their attempts",
			},
			[]string{"kind"},
		),

		RemindersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reminder",
				Name:      "cart_reminders_total",
				Help:      "Cart reminder jobs by result",
			},
			[]string{"result"}, // scheduled, cancelled, fired, stale
		),

		EventHandlerFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "handler_failures_total",
				Help:      "Domain event handlers that returned an error",
			},
			[]string{"event_type"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInboundWebhook records the outcome of a provider notification.
func (m *Metrics) RecordInboundWebhook(outcome string) {
	if m == nil {
		return
	}
	m.InboundWebhooksTotal.WithLabelValues(outcome).Inc()
}

// RecordSettlement records a committed settlement.
func (m *Metrics) RecordSettlement(status string) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues(status).Inc()
}

// RecordDelivery records one outbound delivery attempt.
func (m *Metrics) RecordDelivery(event string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.DeliveryAttemptsTotal.WithLabelValues(event, result).Inc()
	m.DeliveryDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// JobStarted increments the in-flight gauge.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.QueueInFlight.Inc()
}

// JobFinished decrements the in-flight gauge.
func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.QueueInFlight.Dec()
}

// RecordRetry records a re-scheduled job.
func (m *Metrics) RecordRetry(kind string) {
	if m == nil {
		return
	}
	m.QueueRetriesTotal.WithLabelValues(kind).Inc()
}

// RecordDeadJob records a job dropped after its last attempt.
func (m *Metrics) RecordDeadJob(kind string) {
	if m == nil {
		return
	}
	m.QueueDeadJobsTotal.WithLabelValues(kind).Inc()
}

// RecordReminder records a cart reminder lifecycle step.
func (m *Metrics) RecordReminder(result string) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(result).Inc()
}

// RecordEventHandlerFailure records a failed domain event handler.
func (m *Metrics) RecordEventHandlerFailure(eventType string) {
	if m == nil {
		return
	}
	m.EventHandlerFailuresTotal.WithLabelValues(eventType).Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
