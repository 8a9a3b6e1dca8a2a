package metrics

import "github.com/prometheus/client_golang/prometheus"

// FirewallMetrics exposes counters for redaction and injection detection.
type FirewallMetrics struct {
	redactionsTotal *prometheus.CounterVec
	injectionsTotal *prometheus.CounterVec
	scanLatency     *prometheus.HistogramVec
}

func NewFirewallMetrics(reg prometheus.Registerer) *FirewallMetrics {
	m := &FirewallMetrics{
		redactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "firewall",
			Name:      "redactions_total",
			Help:      "Total sensitive values masked before model exposure",
		}, []string{"kind"}),
		injectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "firewall",
			Name:      "injection_signals_total",
			Help:      "Total prompt injection signals detected",
		}, []string{"pattern"}),
		scanLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medtour",
			Subsystem: "firewall",
			Name:      "scan_latency_seconds",
			Help:      "Latency of firewall sanitization per fragment batch",
			Buckets:   prometheus.DefBuckets,
		}, []string{"input"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.redactionsTotal, m.injectionsTotal, m.scanLatency)
	return m
}

func (m *FirewallMetrics) ObserveRedactions(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.redactionsTotal.WithLabelValues(kind).Add(float64(count))
}

func (m *FirewallMetrics) ObserveInjection(pattern string) {
	if m == nil {
		return
	}
	m.injectionsTotal.WithLabelValues(pattern).Inc()
}

func (m *FirewallMetrics) ObserveScanLatency(input string, seconds float64) {
	if m == nil {
		return
	}
	m.scanLatency.WithLabelValues(input).Observe(seconds)
}

// NormalizeMetrics exposes counters/histograms for the normalization flow.
type NormalizeMetrics struct {
	runsTotal      *prometheus.CounterVec
	conflictsTotal prometheus.Counter
	reviewsTotal   prometheus.Counter
	runLatency     *prometheus.HistogramVec
}

func NewNormalizeMetrics(reg prometheus.Registerer) *NormalizeMetrics {
	m := &NormalizeMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "normalize",
			Name:      "runs_total",
			Help:      "Total normalization runs by outcome",
		}, []string{"outcome"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "normalize",
			Name:      "ground_truth_conflicts_total",
			Help:      "Total model fields overridden by the system of record",
		}),
		reviewsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "normalize",
			Name:      "reviews_required_total",
			Help:      "Total canonical records flagged for human review",
		}),
		runLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medtour",
			Subsystem: "normalize",
			Name:      "run_latency_seconds",
			Help:      "End to end latency of a normalization run",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.conflictsTotal, m.reviewsTotal, m.runLatency)
	return m
}

func (m *NormalizeMetrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *NormalizeMetrics) ObserveConflicts(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflictsTotal.Add(float64(count))
}

func (m *NormalizeMetrics) ObserveReviewRequired() {
	if m == nil {
		return
	}
	m.reviewsTotal.Inc()
}
