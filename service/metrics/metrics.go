package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for a sweep run.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Explorer API Metrics
	explorerRequestsTotal   *prometheus.CounterVec
	explorerRequestDuration *prometheus.HistogramVec
	transfersFetchedTotal   *prometheus.CounterVec

	// Sweep Metrics
	tokensTracked      *prometheus.GaugeVec
	tokensPossiblyLost *prometheus.GaugeVec
	sweepDuration      *prometheus.HistogramVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		explorerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_requests_total",
				Help: "Total number of block explorer API requests by host and status class",
			},
			[]string{"host", "status"},
		),
		explorerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_request_duration_seconds",
				Help:    "Duration of block explorer API requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"host"},
		),
		transfersFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_transfers_fetched_total",
				Help: "Total number of token transfer events returned by the explorer",
			},
			[]string{"address"},
		),

		tokensTracked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sweep_tokens_tracked",
				Help: "Number of distinct token contracts seen for an address",
			},
			[]string{"address"},
		),
		tokensPossiblyLost: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sweep_tokens_possibly_lost",
				Help: "Number of token contracts whose net balance is not positive",
			},
			[]string{"address"},
		),
		sweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_duration_seconds",
				Help:    "Duration of a full sweep (fetch, aggregate, report) in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Explorer metric helpers

// RecordExplorerRequest records an explorer HTTP request with duration.
// A statusCode of 0 means the request never produced a response.
func (m *Metrics) RecordExplorerRequest(host string, statusCode int, duration float64) {
	m.explorerRequestsTotal.WithLabelValues(host, statusCodeToString(statusCode)).Inc()
	m.explorerRequestDuration.WithLabelValues(host).Observe(duration)
}

// RecordTransfersFetched records how many transfer events were fetched for an address.
func (m *Metrics) RecordTransfersFetched(address string, count int) {
	m.transfersFetchedTotal.WithLabelValues(address).Add(float64(count))
}

// Sweep metric helpers

// RecordSweepResult records the outcome of aggregating an address.
func (m *Metrics) RecordSweepResult(address string, tracked, possiblyLost int) {
	m.tokensTracked.WithLabelValues(address).Set(float64(tracked))
	m.tokensPossiblyLost.WithLabelValues(address).Set(float64(possiblyLost))
}

// RecordSweepDuration records the wall time of a sweep.
func (m *Metrics) RecordSweepDuration(err error, duration float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sweepDuration.WithLabelValues(status).Observe(duration)
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	case code == 0:
		return "error"
	default:
		return "unknown"
	}
}
