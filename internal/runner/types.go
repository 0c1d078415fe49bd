package runner

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// StageConfig sizes a single pipeline stage.
type StageConfig struct {
	Channels int `json:"channels" yaml:"channels"`
	Capacity int `json:"capacity" yaml:"capacity"`
}

type Config struct {
	Stages []StageConfig `json:"stages"`

	GenerationInterval time.Duration `json:"generation_interval"`
	MinProcessing      time.Duration `json:"min_processing"`
	MaxProcessing      time.Duration `json:"max_processing"`
	Duration           time.Duration `json:"duration"`

	// Bound on every blocking wait. Shutdown is noticed within one interval.
	PollInterval time.Duration `json:"poll_interval"`

	// Zero picks a time-based seed.
	Seed int64 `json:"seed"`
}

// DefaultConfig is the classic lab setup: three stages of two channels
// with five-slot buffers, one request per second, 0.5-2s service, 30s run.
func DefaultConfig() Config {
	stages := make([]StageConfig, 3)
	for i := range stages {
		stages[i] = StageConfig{Channels: 2, Capacity: 5}
	}
	return Config{
		Stages:             stages,
		GenerationInterval: time.Second,
		MinProcessing:      500 * time.Millisecond,
		MaxProcessing:      2 * time.Second,
		Duration:           30 * time.Second,
		PollInterval:       100 * time.Millisecond,
	}
}

// Validate rejects topologies and timings that cannot run.
func (c Config) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrInvalidConfig)
	}
	for i, s := range c.Stages {
		if s.Channels <= 0 {
			return fmt.Errorf("%w: stage %d: channels must be positive, got %d", ErrInvalidConfig, i, s.Channels)
		}
		if s.Capacity <= 0 {
			return fmt.Errorf("%w: stage %d: capacity must be positive, got %d", ErrInvalidConfig, i, s.Capacity)
		}
	}
	switch {
	case c.GenerationInterval <= 0:
		return fmt.Errorf("%w: generation interval must be positive", ErrInvalidConfig)
	case c.MinProcessing < 0:
		return fmt.Errorf("%w: min processing time must not be negative", ErrInvalidConfig)
	case c.MaxProcessing < c.MinProcessing:
		return fmt.Errorf("%w: max processing time %s is below min %s", ErrInvalidConfig, c.MaxProcessing, c.MinProcessing)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// BuildStages sizes n stages from per-stage lists. A list with one value
// applies to every stage.
func BuildStages(n int, channels, capacity []int) ([]StageConfig, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: stages must be positive, got %d", ErrInvalidConfig, n)
	}
	ch, err := broadcast("channels", channels, n)
	if err != nil {
		return nil, err
	}
	cp, err := broadcast("capacity", capacity, n)
	if err != nil {
		return nil, err
	}
	stages := make([]StageConfig, n)
	for i := range stages {
		stages[i] = StageConfig{Channels: ch[i], Capacity: cp[i]}
	}
	return stages, nil
}

func broadcast(name string, list []int, n int) ([]int, error) {
	switch len(list) {
	case 1:
		out := make([]int, n)
		for i := range out {
			out[i] = list[0]
		}
		return out, nil
	case n:
		return list, nil
	default:
		return nil, fmt.Errorf("%w: %s needs 1 or %d values, got %d", ErrInvalidConfig, name, n, len(list))
	}
}

// TotalChannels counts worker channels across all stages.
func (c Config) TotalChannels() int {
	n := 0
	for _, s := range c.Stages {
		n += s.Channels
	}
	return n
}

// Request flows through the pipeline by value.
type Request struct {
	ID             uint64
	CreatedAt      time.Time
	ProcessingTime time.Duration
}
