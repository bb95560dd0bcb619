package metrics

import "github.com/prometheus/client_golang/prometheus"

// CRMMetrics exposes counters/histograms for patient lifecycle, messaging and reporting.
type CRMMetrics struct {
	transitionsTotal *prometheus.CounterVec
	sendsTotal       *prometheus.CounterVec
	dedupDropped     prometheus.Counter
	statsLatency     *prometheus.HistogramVec
	callbacksDue     *prometheus.GaugeVec
}

func NewCRMMetrics(reg prometheus.Registerer) *CRMMetrics {
	m := &CRMMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalcrm",
			Subsystem: "patients",
			Name:      "actions_total",
			Help:      "Lifecycle actions applied to patients",
		}, []string{"action", "outcome"}),
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalcrm",
			Subsystem: "messaging",
			Name:      "sends_total",
			Help:      "Outbound message sends by type and status",
		}, []string{"type", "status"}),
		dedupDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dentalcrm",
			Subsystem: "messaging",
			Name:      "duplicate_sends_total",
			Help:      "Sends rejected because an identical message was sent inside the dedup window",
		}),
		statsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dentalcrm",
			Subsystem: "stats",
			Name:      "compute_seconds",
			Help:      "Latency of statistics computations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"report"}),
		callbacksDue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dentalcrm",
			Subsystem: "patients",
			Name:      "callbacks_due",
			Help:      "Post-visit follow-ups due at the last digest run",
		}, []string{"state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.sendsTotal, m.dedupDropped, m.statsLatency, m.callbacksDue)
	return m
}

// ObserveAction counts a lifecycle action; outcome is "ok", "invalid" or "rejected".
func (m *CRMMetrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *CRMMetrics) ObserveSend(msgType, status string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(msgType, status).Inc()
}

func (m *CRMMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.dedupDropped.Inc()
}

func (m *CRMMetrics) ObserveStats(report string, seconds float64) {
	if m == nil {
		return
	}
	m.statsLatency.WithLabelValues(report).Observe(seconds)
}

// SetCallbacksDue records the size of the follow-up queue; overdue is a subset of due.
func (m *CRMMetrics) SetCallbacksDue(due, overdue int) {
	if m == nil {
		return
	}
	m.callbacksDue.WithLabelValues("due").Set(float64(due))
	m.callbacksDue.WithLabelValues("overdue").Set(float64(overdue))
}
