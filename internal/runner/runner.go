package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"queuelab/internal/queue"
	"queuelab/internal/stats"
)

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("runner already started")

// State is a step of the controller lifecycle.
type State int32

const (
	StateConfiguring State = iota
	StateRunning
	StateDraining
	StateReporting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateReporting:
		return "reporting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageProgress is a live view of one stage. Counters are read without
// stopping the workers and need not be mutually consistent.
type StageProgress struct {
	Index     int    `json:"index"`
	Admitted  uint64 `json:"admitted"`
	Dropped   uint64 `json:"dropped"`
	Processed uint64 `json:"processed"`
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
}

// Progress is pushed on the updates channel while a run is active.
type Progress struct {
	State    State           `json:"state"`
	Elapsed  time.Duration   `json:"elapsed"`
	Duration time.Duration   `json:"duration"`
	Stages   []StageProgress `json:"stages"`
}

// ProgressChan carries Progress updates to a UI.
type ProgressChan chan Progress

// DepthTracker exposes buffer depth to an external collector. Registration
// failure aborts runner construction.
type DepthTracker interface {
	TrackDepth(stage int, depth func() int) error
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the lifecycle logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithObserver forwards every statistics update to o.
func WithObserver(o stats.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithDepthTracker registers every stage buffer with t.
func WithDepthTracker(t DepthTracker) Option {
	return func(r *Runner) { r.depths = t }
}

// WithUpdates pushes Progress to ch every interval while running. Sends never
// block; updates are dropped when ch is full.
func WithUpdates(ch ProgressChan, interval time.Duration) Option {
	return func(r *Runner) {
		r.updates = ch
		r.updateEvery = interval
	}
}

// Runner is the simulation controller. It owns the stage buffers, the
// statistics and every worker goroutine. A Runner runs once.
type Runner struct {
	Cfg   Config
	Stats *stats.Aggregator

	buffers []*queue.Buffer[Request]
	gen     *generator

	log         *zap.Logger
	observer    stats.Observer
	depths      DepthTracker
	updates     ProgressChan
	updateEvery time.Duration

	state     atomic.Int32
	started   atomic.Bool
	startedAt atomic.Int64

	// Overridable in tests.
	service func(ctx context.Context, d time.Duration) bool
}

// New validates cfg and allocates the topology. No goroutine is started.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		Cfg:         cfg,
		log:         zap.NewNop(),
		updateEvery: 200 * time.Millisecond,
		service:     hold,
	}
	for _, opt := range opts {
		opt(r)
	}

	channels := make([]int, len(cfg.Stages))
	r.buffers = make([]*queue.Buffer[Request], len(cfg.Stages))
	for i, s := range cfg.Stages {
		b, err := queue.New[Request](s.Capacity)
		if err != nil {
			return nil, fmt.Errorf("stage %d buffer: %w", i, err)
		}
		r.buffers[i] = b
		channels[i] = s.Channels
	}

	r.Stats = stats.NewAggregator(channels)
	if r.observer != nil {
		r.Stats.SetObserver(r.observer)
	}
	if r.depths != nil {
		for i, b := range r.buffers {
			if err := r.depths.TrackDepth(i, b.Len); err != nil {
				return nil, fmt.Errorf("track stage %d depth: %w", i, err)
			}
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r.gen = newGenerator(cfg, r.buffers[0], r.Stats, seed)

	r.log.Info("Topology configured",
		zap.Int("stages", len(cfg.Stages)),
		zap.Int("channels", cfg.TotalChannels()),
		zap.Duration("interval", cfg.GenerationInterval),
		zap.Duration("duration", cfg.Duration),
		zap.Int64("seed", seed),
	)
	return r, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.log.Debug("State changed", zap.Stringer("state", s))
}

// Generated returns how many requests the generator synthesized. Exact only
// after Run has returned.
func (r *Runner) Generated() uint64 {
	if r.State() != StateTerminated {
		return 0
	}
	return r.gen.generated
}

// Run starts every worker, lets them run for Cfg.Duration (or until ctx is
// cancelled), signals shutdown, joins them all and returns the final
// statistics.
func (r *Runner) Run(ctx context.Context) (stats.Snapshot, error) {
	if !r.started.CompareAndSwap(false, true) {
		return stats.Snapshot{}, ErrAlreadyStarted
	}

	workCtx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	var wg sync.WaitGroup
	r.startedAt.Store(time.Now().UnixNano())
	r.setState(StateRunning)

	for i, s := range r.Cfg.Stages {
		var next *queue.Buffer[Request]
		if i+1 < len(r.buffers) {
			next = r.buffers[i+1]
		}
		for j := 0; j < s.Channels; j++ {
			c := &channel{
				stage:   i,
				index:   j,
				cfg:     r.Cfg,
				in:      r.buffers[i],
				next:    next,
				stats:   r.Stats,
				service: r.service,
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.run(workCtx)
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.gen.run(workCtx)
	}()

	if r.updates != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.tickLoop(workCtx)
		}()
	}

	r.log.Info("Simulation running", zap.Int("goroutines", r.Cfg.TotalChannels()+1))

	timer := time.NewTimer(r.Cfg.Duration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		r.log.Warn("Simulation interrupted", zap.Error(ctx.Err()))
	}

	r.setState(StateDraining)
	drainStart := time.Now()
	shutdown()
	wg.Wait()
	r.log.Info("Workers joined", zap.Duration("drain", time.Since(drainStart)))

	r.setState(StateReporting)
	for i, b := range r.buffers {
		r.Stats.SetResidual(i, len(b.Drain()))
	}
	snap := r.Stats.Snapshot()

	r.setState(StateTerminated)
	r.log.Info("Simulation finished",
		zap.Uint64("generated", r.gen.generated),
		zap.Uint64("completed", snap.Completed()),
	)
	return snap, nil
}

// Live returns a progress view without stopping the workers.
func (r *Runner) Live() Progress {
	snap := r.Stats.Snapshot()
	p := Progress{
		State:    r.State(),
		Duration: r.Cfg.Duration,
		Stages:   make([]StageProgress, len(snap.Stages)),
	}
	if started := r.startedAt.Load(); started != 0 {
		p.Elapsed = time.Since(time.Unix(0, started))
	}
	for i, st := range snap.Stages {
		p.Stages[i] = StageProgress{
			Index:     i,
			Admitted:  st.TotalRequests,
			Dropped:   st.DroppedRequests,
			Processed: st.Processed(),
			Depth:     r.buffers[i].Len(),
			Capacity:  r.buffers[i].Capacity(),
		}
	}
	return p
}

func (r *Runner) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(r.updateEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case r.updates <- r.Live():
			default:
				// UI is behind; skip this update.
			}
		}
	}
}
