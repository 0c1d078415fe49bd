package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"queuelab/internal/runner"
	"queuelab/internal/stats"
)

// HistoryItem is one finished run as persisted in the store.
type HistoryItem struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Config    runner.Config  `json:"config"`
	Summary   RunSummary     `json:"summary"`
	Snapshot  stats.Snapshot `json:"snapshot"`
}

// RunSummary is the one-line digest shown by history listings.
type RunSummary struct {
	Generated    uint64  `json:"generated"`
	Admitted     uint64  `json:"admitted"`
	Dropped      uint64  `json:"dropped"`
	Completed    uint64  `json:"completed"`
	AvgSojournMs float64 `json:"avg_sojourn_ms"`
	P99SojournMs float64 `json:"p99_sojourn_ms"`
}

// NewHistoryItem stamps a finished run with a time-ordered ID.
func NewHistoryItem(cfg runner.Config, generated uint64, snap stats.Snapshot) (HistoryItem, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return HistoryItem{}, err
	}

	var admitted, dropped uint64
	if len(snap.Stages) > 0 {
		admitted = snap.Stages[0].TotalRequests
	}
	for _, st := range snap.Stages {
		dropped += st.DroppedRequests
	}

	return HistoryItem{
		ID:        id.String(),
		Timestamp: time.Now(),
		Config:    cfg,
		Snapshot:  snap,
		Summary: RunSummary{
			Generated:    generated,
			Admitted:     admitted,
			Dropped:      dropped,
			Completed:    snap.Completed(),
			AvgSojournMs: float64(snap.Sojourn.Mean) / float64(time.Millisecond),
			P99SojournMs: float64(snap.Sojourn.P99) / float64(time.Millisecond),
		},
	}, nil
}

// Record builds a HistoryItem for a finished run and saves it.
func (s *Store) Record(cfg runner.Config, generated uint64, snap stats.Snapshot) (HistoryItem, error) {
	item, err := NewHistoryItem(cfg, generated, snap)
	if err != nil {
		return HistoryItem{}, err
	}
	if err := s.Save(item); err != nil {
		return HistoryItem{}, fmt.Errorf("save run %s: %w", item.ID, err)
	}
	return item, nil
}
