package stats

import (
	"sync"
	"time"
)

// Observer is notified of every live counter update after the Aggregator has
// released its lock. Implementations must not call back into the Aggregator.
type Observer interface {
	Admitted(stage int)
	Dropped(stage int)
	Processed(stage, channel int, d time.Duration)
	Idle(stage, channel int, d time.Duration)
	Abandoned(stage int)
	Sojourn(d time.Duration)
}

// ChannelStats holds the counters of a single worker channel.
type ChannelStats struct {
	Index               int            `json:"index"`
	ProcessedRequests   uint64         `json:"processed_requests"`
	TotalProcessingTime time.Duration  `json:"total_processing_time"`
	IdleTime            time.Duration  `json:"idle_time"`
	Service             LatencySummary `json:"service"`
}

// AverageProcessingTime returns TotalProcessingTime/ProcessedRequests, or 0
// when the channel processed nothing.
func (c ChannelStats) AverageProcessingTime() time.Duration {
	if c.ProcessedRequests == 0 {
		return 0
	}
	return c.TotalProcessingTime / time.Duration(c.ProcessedRequests)
}

// StageStats holds the admission counters of one stage and its channels.
type StageStats struct {
	Index           int            `json:"index"`
	TotalRequests   uint64         `json:"total_requests"`
	DroppedRequests uint64         `json:"dropped_requests"`
	Abandoned       uint64         `json:"abandoned"`
	Residual        uint64         `json:"residual"`
	Channels        []ChannelStats `json:"channels"`
}

// Processed sums ProcessedRequests over all channels of the stage.
func (s StageStats) Processed() uint64 {
	var n uint64
	for _, c := range s.Channels {
		n += c.ProcessedRequests
	}
	return n
}

// Snapshot is a deep copy of every counter.
type Snapshot struct {
	Stages  []StageStats   `json:"stages"`
	Sojourn LatencySummary `json:"sojourn"`
}

// Completed returns the number of requests that left the last stage.
func (s Snapshot) Completed() uint64 {
	if len(s.Stages) == 0 {
		return 0
	}
	return s.Stages[len(s.Stages)-1].Processed()
}

type channelState struct {
	processed  uint64
	processing time.Duration
	idle       time.Duration
	service    *latencyHistogram
}

type stageState struct {
	total     uint64
	dropped   uint64
	abandoned uint64
	residual  uint64
	channels  []channelState
}

// Aggregator collects per-stage and per-channel statistics. All methods are
// safe for concurrent use; a single mutex covers every stage.
type Aggregator struct {
	mu       sync.Mutex
	stages   []stageState
	sojourn  *latencyHistogram
	observer Observer
}

// NewAggregator allocates counters for len(channelsPerStage) stages.
func NewAggregator(channelsPerStage []int) *Aggregator {
	a := &Aggregator{
		stages:  make([]stageState, len(channelsPerStage)),
		sojourn: newLatencyHistogram(),
	}
	for i, n := range channelsPerStage {
		a.stages[i].channels = make([]channelState, n)
		for j := range a.stages[i].channels {
			a.stages[i].channels[j].service = newLatencyHistogram()
		}
	}
	return a
}

// SetObserver installs o. It must be called before any worker starts.
func (a *Aggregator) SetObserver(o Observer) {
	a.observer = o
}

func (a *Aggregator) IncrementTotal(stage int) {
	a.mu.Lock()
	a.stages[stage].total++
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Admitted(stage)
	}
}

func (a *Aggregator) IncrementDropped(stage int) {
	a.mu.Lock()
	a.stages[stage].dropped++
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Dropped(stage)
	}
}

// RecordProcessed counts one serviced request that took d.
func (a *Aggregator) RecordProcessed(stage, channel int, d time.Duration) {
	a.mu.Lock()
	c := &a.stages[stage].channels[channel]
	c.processed++
	c.processing += d
	c.service.record(d)
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Processed(stage, channel, d)
	}
}

// AddIdle accumulates d of measured waiting time.
func (a *Aggregator) AddIdle(stage, channel int, d time.Duration) {
	if d <= 0 {
		return
	}
	a.mu.Lock()
	a.stages[stage].channels[channel].idle += d
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Idle(stage, channel, d)
	}
}

// RecordAbandoned counts a request whose service was cut short by shutdown.
func (a *Aggregator) RecordAbandoned(stage int) {
	a.mu.Lock()
	a.stages[stage].abandoned++
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Abandoned(stage)
	}
}

// SetResidual records how many requests were left in the stage buffer.
func (a *Aggregator) SetResidual(stage int, n int) {
	a.mu.Lock()
	a.stages[stage].residual = uint64(n)
	a.mu.Unlock()
}

// RecordSojourn records the end-to-end time of a completed request.
func (a *Aggregator) RecordSojourn(d time.Duration) {
	a.mu.Lock()
	a.sojourn.record(d)
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Sojourn(d)
	}
}

// Snapshot copies every counter. Totals are only guaranteed exact once all
// workers have stopped.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Stages:  make([]StageStats, len(a.stages)),
		Sojourn: a.sojourn.summary(),
	}
	for i, st := range a.stages {
		out := StageStats{
			Index:           i,
			TotalRequests:   st.total,
			DroppedRequests: st.dropped,
			Abandoned:       st.abandoned,
			Residual:        st.residual,
			Channels:        make([]ChannelStats, len(st.channels)),
		}
		for j, c := range st.channels {
			out.Channels[j] = ChannelStats{
				Index:               j,
				ProcessedRequests:   c.processed,
				TotalProcessingTime: c.processing,
				IdleTime:            c.idle,
				Service:             c.service.summary(),
			}
		}
		snap.Stages[i] = out
	}
	return snap
}
