// Package metrics provides Prometheus metrics for the interaction engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains Prometheus metrics for interaction evaluation,
// alerting and the suggestion workflow.
type EngineMetrics struct {
	registry *prometheus.Registry

	pairEvaluations     *prometheus.CounterVec
	alertsCreated       *prometheus.CounterVec
	alertsDeduplicated  *prometheus.CounterVec
	suggestionsTotal    *prometheus.CounterVec
	predictorFallbacks  *prometheus.CounterVec
	resolverCacheLookup *prometheus.CounterVec
	recheckDuration     prometheus.Histogram

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewEngineMetrics creates and registers new engine metrics
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *EngineMetrics) initMetrics() {
	m.pairEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuropharm_pair_evaluations_total",
			Help: "Total number of drug pair evaluations by risk tier",
		},
		[]string{"tier"},
	)

	m.alertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuropharm_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"source"},
	)

	m.alertsDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuropharm_alerts_deduplicated_total",
			Help: "Total number of alerts suppressed by an existing unread alert",
		},
		[]string{"source"},
	)

	m.suggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuropharm_suggestions_total",
			Help: "Total number of suggestion state changes",
		},
		[]string{"status"},
	)

	m.predictorFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuropharm_predictor_fallbacks_total",
			Help: "Total number of remote predictor calls answered by the heuristic",
		},
		[]string{"reason"},
	)

	m.resolverCacheLookup = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuropharm_resolver_cache_lookups_total",
			Help: "Interaction resolver cache lookups by result",
		},
		[]string{"result"},
	)

	m.recheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neuropharm_bulk_recheck_duration_seconds",
			Help:    "Time taken to recheck all active drug pairs of a user",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	m.collectors = []prometheus.Collector{
		m.pairEvaluations,
		m.alertsCreated,
		m.alertsDeduplicated,
		m.suggestionsTotal,
		m.predictorFallbacks,
		m.resolverCacheLookup,
		m.recheckDuration,
	}
}

// Describe implements prometheus.Collector
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordPairEvaluation counts one pair evaluation. Safe on a nil receiver.
func (m *EngineMetrics) RecordPairEvaluation(tier string) {
	if m == nil {
		return
	}
	m.pairEvaluations.WithLabelValues(tier).Inc()
}

// RecordAlertCreated counts a committed alert by source kind.
func (m *EngineMetrics) RecordAlertCreated(source string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(source).Inc()
}

// RecordAlertDeduplicated counts an alert skipped because one is unread.
func (m *EngineMetrics) RecordAlertDeduplicated(source string) {
	if m == nil {
		return
	}
	m.alertsDeduplicated.WithLabelValues(source).Inc()
}

// RecordSuggestion counts a suggestion entering status.
func (m *EngineMetrics) RecordSuggestion(status string) {
	if m == nil {
		return
	}
	m.suggestionsTotal.WithLabelValues(status).Inc()
}

// RecordPredictorFallback counts a heuristic fallback.
func (m *EngineMetrics) RecordPredictorFallback(reason string) {
	if m == nil {
		return
	}
	m.predictorFallbacks.WithLabelValues(reason).Inc()
}

// RecordResolverLookup counts a resolver cache hit or miss.
func (m *EngineMetrics) RecordResolverLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.resolverCacheLookup.WithLabelValues(result).Inc()
}

// ObserveRecheck records the duration of a bulk recheck in seconds.
func (m *EngineMetrics) ObserveRecheck(seconds float64) {
	if m == nil {
		return
	}
	m.recheckDuration.Observe(seconds)
}

// PoolStats is a snapshot of a database connection pool
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
}

// RegisterPoolStats exposes connection pool gauges read from stats on every scrape
func RegisterPoolStats(registry prometheus.Registerer, stats func() PoolStats) error {
	gauges := []struct {
		name, help string
		value      func(PoolStats) int32
	}{
		{"neuropharm_db_pool_acquired_conns", "Connections currently in use", func(s PoolStats) int32 { return s.Acquired }},
		{"neuropharm_db_pool_idle_conns", "Idle connections in the pool", func(s PoolStats) int32 { return s.Idle }},
		{"neuropharm_db_pool_total_conns", "Total connections in the pool", func(s PoolStats) int32 { return s.Total }},
	}
	for _, g := range gauges {
		value := g.value
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: g.name, Help: g.help}, func() float64 {
			return float64(value(stats()))
		})
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
