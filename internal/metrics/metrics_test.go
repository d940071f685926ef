package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(label).(prometheus.Metric).Write(m))
	return m.GetCounter().GetValue()
}

func TestNew_RegistersDistinctCollectorsPerRegistry(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()

	m1 := New(reg1)
	m2 := New(reg2)

	m1.ObserveThreadOutcome("completed")
	m2.ObserveThreadOutcome("completed")

	require.Equal(t, float64(1), counterValue(t, m1.ThreadOutcomes, "completed"))
	require.Equal(t, float64(1), counterValue(t, m2.ThreadOutcomes, "completed"))
}

func TestObserveRequest_RecordsIntoDurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("ok", 25*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() == "reasoning_gateway_request_duration_seconds" {
			found = true
			require.Len(t, fam.GetMetric(), 1)
			require.Equal(t, uint64(1), fam.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	require.True(t, found, "expected request duration histogram to be registered")
}

func TestObserveFusionStrategy_IncrementsByStrategyLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFusionStrategy("concat")
	m.ObserveFusionStrategy("concat")
	m.ObserveFusionStrategy("intelligent")

	require.Equal(t, float64(2), counterValue(t, m.FusionStrategyUsed, "concat"))
	require.Equal(t, float64(1), counterValue(t, m.FusionStrategyUsed, "intelligent"))
}
