package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChangefeedMetrics counts change notifications by table and result.
type ChangefeedMetrics struct {
	messages *prometheus.CounterVec
}

// NewChangefeedMetrics registers the change-feed metrics on the provided registerer.
func NewChangefeedMetrics(reg prometheus.Registerer) *ChangefeedMetrics {
	if reg == nil {
		return &ChangefeedMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_messages_total",
		Help: "Change notifications handled, by table and result.",
	}, []string{"table", "result"})
	reg.MustRegister(messages)
	return &ChangefeedMetrics{messages: messages}
}

func (m *ChangefeedMetrics) IncMessage(table, result string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(table), normalizeLabel(result)).Inc()
}
