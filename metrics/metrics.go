// Package metrics collects counters for long-running data operations and
// renders a summary report. Counters are safe for concurrent use.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Run tracks the progress of one batch operation, such as an export or a
// bulk upload.
type Run struct {
	itemsProcessed atomic.Int64
	itemsFailed    atomic.Int64
	bytesWritten   atomic.Int64
	startTime      time.Time
}

// NewRun starts tracking a new operation.
func NewRun() *Run {
	return &Run{startTime: time.Now()}
}

// ItemProcessed increments the processed items counter.
func (r *Run) ItemProcessed() {
	r.itemsProcessed.Add(1)
}

// ItemFailed increments the failed items counter.
func (r *Run) ItemFailed() {
	r.itemsFailed.Add(1)
}

// AddBytes records n bytes of output.
func (r *Run) AddBytes(n int64) {
	r.bytesWritten.Add(n)
}

// Report summarizes one completed operation.
type Report struct {
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	Items      int64         `json:"items"`
	Failed     int64         `json:"failed"`
	Bytes      int64         `json:"bytes"`
	Duration   time.Duration `json:"duration"`
	Throughput float64       `json:"throughput"` // items per second
}

// Report snapshots the counters into a summary.
func (r *Run) Report() Report {
	endTime := time.Now()
	duration := endTime.Sub(r.startTime)

	var throughput float64
	if duration > 0 {
		throughput = float64(r.itemsProcessed.Load()) / duration.Seconds()
	}

	return Report{
		StartTime:  r.startTime,
		EndTime:    endTime,
		Items:      r.itemsProcessed.Load(),
		Failed:     r.itemsFailed.Load(),
		Bytes:      r.bytesWritten.Load(),
		Duration:   duration,
		Throughput: throughput,
	}
}

// MarshalJSON renders the duration as a string so reports stay readable.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String returns a human-readable summary for console output.
func (r Report) String() string {
	return fmt.Sprintf(
		"Completed in %s\n"+
			"Items: %d\n"+
			"Failed: %d\n"+
			"Throughput: %.2f items/sec",
		r.Duration,
		r.Items,
		r.Failed,
		r.Throughput,
	)
}
