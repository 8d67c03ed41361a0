package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestCollector_RecordAggregation(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordAggregation("ponte-do-cure", 10, 2, 1)
	c.RecordAggregation("ponte-do-cure", 5, 0, 0)

	assert.Equal(t, 15.0, value(t, c.AggregationRecords.WithLabelValues("ponte-do-cure", "folded")))
	assert.Equal(t, 2.0, value(t, c.AggregationRecords.WithLabelValues("ponte-do-cure", "skipped_timestamp")))
	assert.Equal(t, 1.0, value(t, c.AggregationRecords.WithLabelValues("ponte-do-cure", "unmatched_category")))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector("test", prometheus.NewRegistry())
		NewCollector("test", prometheus.NewRegistry())
	})
}

func TestCollector_UpdateDBConnectionPool(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())
	c.UpdateDBConnectionPool(3, 2, 5)

	assert.Equal(t, 3.0, value(t, c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, 2.0, value(t, c.DBConnectionPool.WithLabelValues("idle")))
	assert.Equal(t, 5.0, value(t, c.DBConnectionPool.WithLabelValues("total")))
}
