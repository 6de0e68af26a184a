package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "phone_assistant"

// CRMMetrics exposes counters/histograms for outbound CRM calls.
type CRMMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewCRMMetrics(reg prometheus.Registerer) *CRMMetrics {
	m := &CRMMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crm",
			Name:      "requests_total",
			Help:      "Total CRM operations by outcome",
		}, []string{"op", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crm",
			Name:      "request_duration_seconds",
			Help:      "Latency of CRM operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

// ObserveRequest records one CRM operation. outcome is "ok", "not_found" or "error".
func (m *CRMMetrics) ObserveRequest(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(op, outcome).Inc()
	m.requestDuration.WithLabelValues(op).Observe(seconds)
}

// WebhookMetrics tracks inbound voice platform webhooks.
type WebhookMetrics struct {
	eventsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total voice platform webhook events",
		}, []string{"provider", "event", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.latency)
	return m
}

func (m *WebhookMetrics) ObserveEvent(provider, event, status string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(provider, event, status).Inc()
}

func (m *WebhookMetrics) ObserveLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(provider).Observe(seconds)
}
