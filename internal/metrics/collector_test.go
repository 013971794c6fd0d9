package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("myriad", reg, zap.NewNop()), reg
}

func TestCollector_RecordSelection(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordSelection("define", true, 0.8)
	c.RecordSelection("define", true, 0.6)
	c.RecordSelection("define", false, 0.1)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.selectionsTotal.WithLabelValues("define", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.selectionsTotal.WithLabelValues("define", "miss")))
}

func TestCollector_RecordTask(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordTask("calculate", "success", 120*time.Millisecond)
	c.RecordTask("calculate", "error", 10*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.tasksTotal.WithLabelValues("calculate", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.tasksTotal.WithLabelValues("calculate", "error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["myriad_tasks_total"])
	assert.True(t, names["myriad_task_duration_seconds"])
}

func TestCollector_RecordWeightUpdate(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordWeightUpdate(true)
	c.RecordWeightUpdate(true)
	c.RecordWeightUpdate(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.weightUpdatesTotal.WithLabelValues("reinforce")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.weightUpdatesTotal.WithLabelValues("weaken")))
}

func TestCollector_RecordDecay(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDecay(5)
	c.RecordDecay(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.decayRunsTotal))
	assert.Equal(t, float64(8), testutil.ToFloat64(c.decayedEdges))
}

func TestCollector_NilRegistererDoesNotPanic(t *testing.T) {
	// Registering twice on the default registerer panics, so route through
	// a scratch registry here and only assert construction succeeds.
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		NewCollector("myriad_scratch", reg, nil)
	})
}
