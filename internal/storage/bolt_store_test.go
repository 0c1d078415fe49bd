package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuelab/internal/runner"
	"queuelab/internal/stats"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func item(t *testing.T) HistoryItem {
	t.Helper()
	snap := stats.Snapshot{
		Stages: []stats.StageStats{
			{TotalRequests: 8, DroppedRequests: 2, Channels: []stats.ChannelStats{{ProcessedRequests: 7}}},
			{Index: 1, TotalRequests: 6, DroppedRequests: 1, Channels: []stats.ChannelStats{{ProcessedRequests: 5}}},
		},
		Sojourn: stats.LatencySummary{Count: 5, Mean: 1500 * time.Millisecond, P99: 3 * time.Second},
	}
	it, err := NewHistoryItem(runner.DefaultConfig(), 10, snap)
	require.NoError(t, err)
	return it
}

func TestNewHistoryItemSummary(t *testing.T) {
	it := item(t)

	assert.Len(t, it.ID, 36)
	assert.Equal(t, RunSummary{
		Generated:    10,
		Admitted:     8,
		Dropped:      3,
		Completed:    5,
		AvgSojournMs: 1500,
		P99SojournMs: 3000,
	}, it.Summary)
}

func TestSaveGetList(t *testing.T) {
	s, _ := openTemp(t)

	first := item(t)
	second := item(t)
	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))

	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, got.Summary)
	assert.Equal(t, first.Config, got.Config)

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest first")
	assert.Equal(t, first.ID, items[1].ID)
}

func TestGetByPrefix(t *testing.T) {
	s, _ := openTemp(t)
	it := item(t)
	require.NoError(t, s.Save(it))

	got, err := s.Get(it.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)

	_, err = s.Get("zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAmbiguousPrefix(t *testing.T) {
	s, _ := openTemp(t)
	a, b := item(t), item(t)
	a.ID = "abc-1"
	b.ID = "abc-2"
	require.NoError(t, s.Save(a))
	require.NoError(t, s.Save(b))

	_, err := s.Get("abc")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestSavePrunesOldest(t *testing.T) {
	s, _ := openTemp(t)
	var ids []string
	for i := 0; i < MaxRuns+3; i++ {
		it := item(t)
		ids = append(ids, it.ID)
		require.NoError(t, s.Save(it))
	}

	items, err := s.List()
	require.NoError(t, err)
	assert.Len(t, items, MaxRuns)

	for _, id := range ids[:3] {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, ids[len(ids)-1], items[0].ID)
}

func TestReopenKeepsRuns(t *testing.T) {
	s, path := openTemp(t)
	it := item(t)
	require.NoError(t, s.Save(it))
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	got, err := again.Get(it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)
}

func TestRecord(t *testing.T) {
	s, _ := openTemp(t)
	snap := stats.Snapshot{Stages: []stats.StageStats{{TotalRequests: 2, Channels: []stats.ChannelStats{{ProcessedRequests: 2}}}}}

	it, err := s.Record(runner.DefaultConfig(), 3, snap)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), it.Summary.Completed)

	got, err := s.Get(it.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Summary.Generated)
	assert.Equal(t, snap.Stages[0].TotalRequests, got.Snapshot.Stages[0].TotalRequests)
}
