package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu        sync.Mutex
	admitted  int
	dropped   int
	processed int
	abandoned int
	sojourns  int
	idle      time.Duration
}

func (o *countingObserver) Admitted(int) { o.mu.Lock(); o.admitted++; o.mu.Unlock() }
func (o *countingObserver) Dropped(int)  { o.mu.Lock(); o.dropped++; o.mu.Unlock() }
func (o *countingObserver) Processed(int, int, time.Duration) {
	o.mu.Lock()
	o.processed++
	o.mu.Unlock()
}
func (o *countingObserver) Idle(_, _ int, d time.Duration) { o.mu.Lock(); o.idle += d; o.mu.Unlock() }
func (o *countingObserver) Abandoned(int)                  { o.mu.Lock(); o.abandoned++; o.mu.Unlock() }
func (o *countingObserver) Sojourn(time.Duration)          { o.mu.Lock(); o.sojourns++; o.mu.Unlock() }

func TestAggregatorNoLostUpdates(t *testing.T) {
	a := NewAggregator([]int{2, 3})
	obs := &countingObserver{}
	a.SetObserver(obs)

	const workers, perWorker = 8, 1000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				a.IncrementTotal(w % 2)
				a.IncrementDropped(1)
				a.RecordProcessed(1, w%3, time.Millisecond)
				a.AddIdle(0, w%2, time.Microsecond)
				a.RecordAbandoned(0)
				a.RecordSojourn(time.Millisecond)
			}
		}(w)
	}
	wg.Wait()

	snap := a.Snapshot()
	require.Len(t, snap.Stages, 2)
	assert.Equal(t, uint64(workers*perWorker/2), snap.Stages[0].TotalRequests)
	assert.Equal(t, uint64(workers*perWorker/2), snap.Stages[1].TotalRequests)
	assert.Equal(t, uint64(workers*perWorker), snap.Stages[1].DroppedRequests)
	assert.Equal(t, uint64(workers*perWorker), snap.Stages[1].Processed())

	var idle time.Duration
	for _, c := range snap.Stages[0].Channels {
		idle += c.IdleTime
	}
	assert.Equal(t, time.Duration(workers*perWorker)*time.Microsecond, idle)

	assert.Equal(t, workers*perWorker, obs.admitted)
	assert.Equal(t, workers*perWorker, obs.dropped)
	assert.Equal(t, workers*perWorker, obs.processed)
	assert.Equal(t, workers*perWorker, obs.abandoned)
	assert.Equal(t, workers*perWorker, obs.sojourns)
	assert.Equal(t, uint64(workers*perWorker), snap.Stages[0].Abandoned)
	assert.Equal(t, int64(workers*perWorker), snap.Sojourn.Count)
}

func TestAverageProcessingTime(t *testing.T) {
	a := NewAggregator([]int{2})
	a.RecordProcessed(0, 0, 10*time.Millisecond)
	a.RecordProcessed(0, 0, 30*time.Millisecond)

	snap := a.Snapshot()
	assert.Equal(t, 20*time.Millisecond, snap.Stages[0].Channels[0].AverageProcessingTime())
	assert.Equal(t, time.Duration(0), snap.Stages[0].Channels[1].AverageProcessingTime())

	svc := snap.Stages[0].Channels[0].Service
	assert.Equal(t, int64(2), svc.Count)
	assert.InDelta(t, float64(30*time.Millisecond), float64(svc.Max), float64(100*time.Microsecond))
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator([]int{1})
	a.IncrementTotal(0)
	first := a.Snapshot()

	a.IncrementTotal(0)
	a.SetResidual(0, 4)
	a.RecordAbandoned(0)

	assert.Equal(t, uint64(1), first.Stages[0].TotalRequests)
	second := a.Snapshot()
	assert.Equal(t, uint64(2), second.Stages[0].TotalRequests)
	assert.Equal(t, uint64(4), second.Stages[0].Residual)
	assert.Equal(t, uint64(1), second.Stages[0].Abandoned)
}

func TestSojournAndCompleted(t *testing.T) {
	a := NewAggregator([]int{1, 1})
	a.RecordProcessed(1, 0, 0)
	a.RecordSojourn(5 * time.Millisecond)

	snap := a.Snapshot()
	assert.Equal(t, uint64(1), snap.Completed())
	assert.Equal(t, int64(1), snap.Sojourn.Count)
	assert.Equal(t, uint64(0), Snapshot{}.Completed())
}

func TestIdleIgnoresNonPositive(t *testing.T) {
	a := NewAggregator([]int{1})
	a.AddIdle(0, 0, 0)
	a.AddIdle(0, 0, -time.Second)
	assert.Equal(t, time.Duration(0), a.Snapshot().Stages[0].Channels[0].IdleTime)
}
