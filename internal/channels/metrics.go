package channels

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks message flow and delivery outcomes across every adapter
// registered with the façade. One Metrics is shared by the whole Registry;
// Prometheus label cardinality stays bounded by channel type.
type Metrics struct {
	messagesIn  *prometheus.CounterVec
	messagesOut *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
	sendErrors  *prometheus.CounterVec
}

// NewMetrics registers the façade's counters against reg. Each Registry
// owns its own prometheus.Registry rather than the global default, so
// building more than one Registry (as tests do) never collides on a metric
// name already registered by another instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messagesIn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stark_channel_messages_in_total",
				Help: "Inbound messages accepted by channel type, after dedup",
			},
			[]string{"channel"},
		),
		messagesOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stark_channel_messages_out_total",
				Help: "Outbound sends attempted by channel type and outcome",
			},
			[]string{"channel", "outcome"},
		),
		duplicates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stark_channel_duplicate_messages_total",
				Help: "Inbound messages dropped as duplicates by channel type",
			},
			[]string{"channel"},
		),
		sendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stark_channel_send_errors_total",
				Help: "Outbound send failures by channel type",
			},
			[]string{"channel"},
		),
	}
}

func (m *Metrics) recordInbound(channel string) {
	if m == nil {
		return
	}
	m.messagesIn.WithLabelValues(channel).Inc()
}

func (m *Metrics) recordDuplicate(channel string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(channel).Inc()
}

func (m *Metrics) recordSend(channel string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
		m.sendErrors.WithLabelValues(channel).Inc()
	}
	m.messagesOut.WithLabelValues(channel, outcome).Inc()
}
