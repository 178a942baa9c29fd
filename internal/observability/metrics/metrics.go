package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the inbound routing pipeline.
type EngineMetrics struct {
	inboundTotal    *prometheus.CounterVec
	duplicatesTotal prometheus.Counter
	tierTransitions *prometheus.CounterVec
	handlerLatency  *prometheus.HistogramVec
	storeRetries    prometheus.Counter
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "engine",
			Name:      "inbound_total",
			Help:      "Total inbound messages by processing status",
		}, []string{"status"}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "engine",
			Name:      "duplicates_total",
			Help:      "Total duplicate deliveries suppressed by the dedup gate",
		}),
		tierTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "engine",
			Name:      "tier_transitions_total",
			Help:      "Total tier transitions",
		}, []string{"from", "to"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadrouter",
			Subsystem: "engine",
			Name:      "handler_latency_seconds",
			Help:      "Latency of tier handler responses",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),
		storeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "engine",
			Name:      "store_retries_total",
			Help:      "Total pipeline retries caused by store conflicts or timeouts",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.duplicatesTotal, m.tierTransitions, m.handlerLatency, m.storeRetries)
	return m
}

func (m *EngineMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *EngineMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *EngineMetrics) ObserveTierTransition(from, to string) {
	if m == nil {
		return
	}
	m.tierTransitions.WithLabelValues(from, to).Inc()
}

func (m *EngineMetrics) ObserveHandlerLatency(tier string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(tier).Observe(seconds)
}

func (m *EngineMetrics) ObserveStoreRetry() {
	if m == nil {
		return
	}
	m.storeRetries.Inc()
}
