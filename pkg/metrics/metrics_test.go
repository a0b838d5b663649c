package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(RowsScanned.WithLabelValues(ScanCount))
	RowsScanned.WithLabelValues(ScanCount).Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RowsScanned.WithLabelValues(ScanCount)))

	dropped := testutil.ToFloat64(RowsDropped)
	RowsDropped.Inc()
	assert.Equal(t, dropped+1, testutil.ToFloat64(RowsDropped))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("count")
	time.Sleep(time.Millisecond)
	assert.Equal(t, "count", timer.Name())
	assert.GreaterOrEqual(t, timer.ObserveDuration(), time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(OperationLatency, "sheetport_operation_duration_seconds"))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("xlsx", "csv")
	tracker.Increment(10)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("xlsx", "csv")))

	tracker.Increment(1)
	assert.GreaterOrEqual(t, tracker.GetAndReset(), 0.0)
}
