package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	CarrierErrors      *prometheus.CounterVec
	InboundWebhooks    *prometheus.CounterVec
	OutboundDeliveries *prometheus.CounterVec
	OutboundAttempts   *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_requests_total",
				Help: "Total number of requests by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_request_duration_seconds",
				Help:    "Request duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_carrier_errors_total",
				Help: "Total carrier API errors by carrier and error type",
			},
			[]string{"carrier", "error_type"},
		),
		InboundWebhooks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_inbound_webhooks_total",
				Help: "Inbound carrier webhooks by carrier and outcome",
			},
			[]string{"carrier", "outcome"},
		),
		OutboundDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_outbound_deliveries_total",
				Help: "Outbound webhook deliveries by event type and final status",
			},
			[]string{"event", "status"},
		),
		OutboundAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_outbound_attempts_total",
				Help: "Outbound webhook delivery attempts by result",
			},
			[]string{"result"},
		),
	}
}

// RecordRequest records a carrier request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordInboundWebhook records one processed inbound webhook.
func (m *Metrics) RecordInboundWebhook(carrier, outcome string) {
	m.InboundWebhooks.WithLabelValues(carrier, outcome).Inc()
}

// RecordDelivery records the final status of one outbound delivery.
func (m *Metrics) RecordDelivery(event, status string) {
	m.OutboundDeliveries.WithLabelValues(event, status).Inc()
}

// RecordAttempt records one outbound delivery attempt result.
func (m *Metrics) RecordAttempt(result string) {
	m.OutboundAttempts.WithLabelValues(result).Inc()
}
