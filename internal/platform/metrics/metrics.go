package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CertificatesCreated *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	TransitionFailures  *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	OutboxRelayFailures prometheus.Counter
	RequestLatency      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_certificates_created_total",
			Help: "Total number of certificate applications created, by type",
		}, []string{"type"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_certificate_transitions_total",
			Help: "Total number of successful certificate lifecycle transitions, by operation",
		}, []string{"operation"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_certificate_transition_failures_total",
			Help: "Total number of rejected certificate lifecycle transitions, by reason",
		}, []string{"reason"}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_notifications_sent_total",
			Help: "Total number of applicant notifications created",
		}),
		OutboxRelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_outbox_relay_failures_total",
			Help: "Total number of failed outbox relay publish attempts",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civreg_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// IncrementCertificateCreated increments the created counter for a type.
func (m *Metrics) IncrementCertificateCreated(certType string) {
	m.CertificatesCreated.WithLabelValues(certType).Inc()
}

// IncrementTransition increments the transition counter for an operation.
func (m *Metrics) IncrementTransition(operation string) {
	m.Transitions.WithLabelValues(operation).Inc()
}

// IncrementTransitionFailure increments the failure counter for a reason.
func (m *Metrics) IncrementTransitionFailure(reason string) {
	m.TransitionFailures.WithLabelValues(reason).Inc()
}
