package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the drafting flow.
type ConversationMetrics struct {
	transitions    *prometheus.CounterVec
	generations    *prometheus.CounterVec
	generationTime prometheus.Histogram
	dispatches     *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailbot",
			Subsystem: "conversation",
			Name:      "transitions_total",
			Help:      "Handled events by phase before and after",
		}, []string{"from", "to"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailbot",
			Subsystem: "drafts",
			Name:      "generations_total",
			Help:      "Draft generation attempts by outcome and number of drafts returned",
		}, []string{"status", "count"}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mailbot",
			Subsystem: "drafts",
			Name:      "generation_seconds",
			Help:      "Latency of draft generation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailbot",
			Subsystem: "mail",
			Name:      "dispatch_total",
			Help:      "Email dispatch attempts by provider and outcome",
		}, []string{"provider", "status"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailbot",
			Subsystem: "line",
			Name:      "webhook_events_total",
			Help:      "Inbound LINE webhook events",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mailbot",
			Subsystem: "line",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of LINE webhook batch processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.generations, m.generationTime, m.dispatches, m.webhookEvents, m.webhookLatency)
	return m
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveGeneration records one draft generation. count is ignored on failure.
func (m *ConversationMetrics) ObserveGeneration(ok bool, count int, seconds float64) {
	if m == nil {
		return
	}
	status, label := "error", "0"
	if ok {
		status = "ok"
		switch {
		case count >= 3:
			label = "3"
		case count == 2:
			label = "2"
		default:
			label = "1"
		}
	}
	m.generations.WithLabelValues(status, label).Inc()
	m.generationTime.Observe(seconds)
}

func (m *ConversationMetrics) ObserveDispatch(provider, status string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(provider, status).Inc()
}

func (m *ConversationMetrics) ObserveWebhookEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, status).Inc()
}

func (m *ConversationMetrics) ObserveWebhookLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(status).Observe(seconds)
}
