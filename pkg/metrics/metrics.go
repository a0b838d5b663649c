// Package metrics exposes Prometheus collectors for sheetport's read and
// write paths. Every collector is registered with the default registry at
// package load, so a process only needs to serve promhttp.Handler() to
// publish them.
//
// # Basic Usage
//
//	// Count rows yielded by a cursor
//	metrics.RowsScanned.WithLabelValues(metrics.ScanRead).Inc()
//
//	// Time a full-sheet count
//	timer := metrics.NewTimer("count")
//	n := countRows()
//	metrics.OperationLatency.WithLabelValues("count").Observe(timer.Stop().Seconds())
//
//	// Track copy throughput
//	tracker := metrics.NewThroughputTracker("xlsx", "csv")
//	for record := range records {
//	    write(record)
//	    tracker.Increment(1)
//	}
//	rate := tracker.GetAndReset()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan purposes used as the "purpose" label of RowsScanned.
const (
	ScanRead  = "read"
	ScanSeek  = "seek"
	ScanCount = "count"
)

// Restart methods used as the "method" label of Rescans.
const (
	RestartRewind = "rewind"
	RestartReopen = "reopen"
)

// Row kinds used as the "kind" label of RowsWritten.
const (
	RowHeader = "header"
	RowData   = "data"
)

var (
	// RowsScanned counts rows pulled from a sheet engine
	RowsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetport_rows_scanned_total",
			Help: "Total number of rows pulled from sheet engines",
		},
		[]string{"purpose"},
	)

	// RowsDropped counts rows suppressed because their width differs from the header
	RowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetport_rows_dropped_total",
			Help: "Total number of rows dropped for not matching the header width",
		},
	)

	// Rescans counts how often a cursor restarted a sheet from its first row
	Rescans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetport_rescans_total",
			Help: "Total number of times a row cursor restarted its sheet",
		},
		[]string{"method"},
	)

	// RowsWritten counts rows handed to sheet writers
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetport_rows_written_total",
			Help: "Total number of rows written by sinks",
		},
		[]string{"kind"},
	)

	// OperationLatency tracks how long whole-sheet operations take
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetport_operation_duration_seconds",
			Help:    "Duration of whole-sheet operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"operation"},
	)

	// Throughput reports the records per second of the most recent copy
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetport_throughput_records_per_second",
			Help: "Records copied per second",
		},
		[]string{"source", "destination"},
	)
)

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration stops the timer and records it in OperationLatency under
// the timer's name.
func (t *Timer) ObserveDuration() time.Duration {
	d := t.Stop()
	OperationLatency.WithLabelValues(t.name).Observe(d.Seconds())
	return d
}

// ThroughputTracker tracks records per second between resets.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64
	lastReset   time.Time
	source      string
	destination string
}

// NewThroughputTracker creates a tracker labelled with the copy endpoints.
func NewThroughputTracker(source, destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		source:      source,
		destination: destination,
	}
}

// Increment adds n records.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// GetAndReset returns the rate since the last reset, publishes it to the
// Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(t.count) / elapsed
	}
	Throughput.WithLabelValues(t.source, t.destination).Set(rate)

	t.count = 0
	t.lastReset = time.Now()
	return rate
}
