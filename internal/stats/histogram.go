package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// latencyHistogram records durations in microseconds. It is not safe for
// concurrent use; the Aggregator serializes access under its own lock.
type latencyHistogram struct {
	hist *hdrhistogram.Histogram
}

func newLatencyHistogram() *latencyHistogram {
	// 1us to 10min, 3 significant figures
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &latencyHistogram{hist: h}
}

func (h *latencyHistogram) record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	// Values past the trackable range are clamped rather than lost.
	if us > h.hist.HighestTrackableValue() {
		us = h.hist.HighestTrackableValue()
	}
	_ = h.hist.RecordValue(us)
}

func (h *latencyHistogram) summary() LatencySummary {
	if h.hist.TotalCount() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: h.hist.TotalCount(),
		Mean:  time.Duration(h.hist.Mean() * float64(time.Microsecond)),
		P50:   time.Duration(h.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99:   time.Duration(h.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(h.hist.Max()) * time.Microsecond,
	}
}

// LatencySummary is a point-in-time digest of a latency distribution.
type LatencySummary struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}
