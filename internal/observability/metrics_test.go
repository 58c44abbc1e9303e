package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRun(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordRun("succeeded", 120, 2, map[string]int{"flow_z": 118, "vix": 3})
	m.RecordRun("failed", 0, 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.RowsEmitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TickersProcessed))
	assert.Equal(t, 118.0, testutil.ToFloat64(m.UndefinedValues.WithLabelValues("flow_z")))
}

func TestRecordDBQuery(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordDBQuery("postgres", "insert_prices", time.Now(), nil)
	m.RecordDBQuery("postgres", "insert_prices", time.Now(), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_prices")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.DBQueryDuration))
}

func TestRecordRowsIngested(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordRowsIngested("prices", 10)
	m.RecordRowsIngested("prices", 5)
	m.RecordInputError("ordering")

	assert.Equal(t, 15.0, testutil.ToFloat64(m.RowsIngested.WithLabelValues("prices")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InputErrors.WithLabelValues("ordering")))
}
