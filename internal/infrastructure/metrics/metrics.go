package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/ledgerflow/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	TransfersProcessed   *prometheus.CounterVec
	TransferDuration     *prometheus.HistogramVec
	TransfersReplayed    prometheus.Counter
	NotificationFailures prometheus.Counter

	// Outbox metrics
	OutboxRelayed prometheus.Counter

	// Consumer metrics
	MessagesConsumed *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Transfer metrics
		TransfersProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerflow_transfers_processed_total",
				Help: "Total number of transfers settled, by terminal status",
			},
			[]string{"status"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgerflow_transfer_duration_seconds",
				Help:    "Duration of transfer processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		TransfersReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerflow_transfers_replayed_total",
			Help: "Total number of duplicate requests answered from the ledger",
		}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerflow_notification_failures_total",
			Help: "Total number of direct result notifications that failed",
		}),

		// Outbox metrics
		OutboxRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerflow_outbox_relayed_total",
			Help: "Total number of results delivered by the outbox relay",
		}),

		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerflow_messages_consumed_total",
				Help: "Total request messages consumed, by acknowledgement",
			},
			[]string{"ack"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerflow_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgerflow_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// ObserveTransfer records one processed transfer.
func (m *Metrics) ObserveTransfer(result domain.TransferResult, elapsed time.Duration) {
	if result.Replayed {
		m.TransfersReplayed.Inc()
		return
	}

	status := string(result.Status)
	m.TransfersProcessed.WithLabelValues(status).Inc()
	m.TransferDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// IncNotificationFailures counts a failed direct notification.
func (m *Metrics) IncNotificationFailures() {
	m.NotificationFailures.Inc()
}

// IncOutboxRelayed counts a result delivered by the outbox relay.
func (m *Metrics) IncOutboxRelayed() {
	m.OutboxRelayed.Inc()
}

// ObserveMessage records how a consumed message was acknowledged.
func (m *Metrics) ObserveMessage(ack string) {
	m.MessagesConsumed.WithLabelValues(ack).Inc()
}
