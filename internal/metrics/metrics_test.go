package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordPairEvaluation("high")
	m.RecordPairEvaluation("high")
	m.RecordAlertCreated("interaction")
	m.RecordAlertDeduplicated("interaction")
	m.RecordSuggestion("PENDING")
	m.RecordPredictorFallback("breaker_open")
	m.RecordResolverLookup(true)
	m.ObserveRecheck(0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pairEvaluations.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsCreated.WithLabelValues("interaction")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolverCacheLookup.WithLabelValues("hit")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewEngineMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	_, err = NewEngineMetrics(registry)
	assert.Error(t, err)
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics

	assert.NotPanics(t, func() {
		m.RecordPairEvaluation("low")
		m.RecordAlertCreated("suggestion")
		m.RecordResolverLookup(false)
		m.ObserveRecheck(1)
	})
}

func TestRegisterPoolStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	stats := PoolStats{Acquired: 2, Idle: 3, Total: 5}

	require.NoError(t, RegisterPoolStats(registry, func() PoolStats { return stats }))

	families, err := registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 2.0, values["neuropharm_db_pool_acquired_conns"])
	assert.Equal(t, 3.0, values["neuropharm_db_pool_idle_conns"])
	assert.Equal(t, 5.0, values["neuropharm_db_pool_total_conns"])

	assert.Error(t, RegisterPoolStats(registry, func() PoolStats { return stats }))
}
