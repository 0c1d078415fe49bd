package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuelab/internal/stats"
)

func sampleSnapshot() stats.Snapshot {
	return stats.Snapshot{
		Stages: []stats.StageStats{
			{
				Index:           0,
				TotalRequests:   10,
				DroppedRequests: 3,
				Residual:        1,
				Channels: []stats.ChannelStats{
					{Index: 0, ProcessedRequests: 4, TotalProcessingTime: 4 * time.Second, IdleTime: 1500 * time.Millisecond},
					{Index: 1, ProcessedRequests: 5, TotalProcessingTime: 6 * time.Second, IdleTime: 250 * time.Millisecond},
				},
			},
			{
				Index:         1,
				TotalRequests: 9,
				Channels: []stats.ChannelStats{
					{Index: 0, ProcessedRequests: 9, TotalProcessingTime: 900 * time.Millisecond},
				},
			},
		},
		Sojourn: stats.LatencySummary{Count: 9, Mean: time.Second, P50: time.Second, P99: 2 * time.Second, Max: 2 * time.Second},
	}
}

func TestRenderFormat(t *testing.T) {
	out := String(sampleSnapshot())

	assert.Contains(t, out, "System Statistics:")
	assert.Contains(t, out, "Stage 1:\nTotal Requests: 10\nDropped Requests: 3\n")
	assert.Contains(t, out, "Residual Requests: 1\n")
	assert.Contains(t, out, "Channel 2:\n  Processed Requests: 5\n  Average Processing Time: 1200.00 ms\n")
	assert.Contains(t, out, "  Idle Time: 1500 ms\n")
	assert.Contains(t, out, "Stage 2:")
	assert.Contains(t, out, "Completed Requests: 9\n")
	assert.Contains(t, out, "p99 2000.00 ms")
}

func TestRenderIsIdempotent(t *testing.T) {
	snap := sampleSnapshot()
	var a, b bytes.Buffer
	require.NoError(t, Render(&a, snap))
	require.NoError(t, Render(&b, snap))
	assert.Equal(t, a.String(), b.String())
}

func TestRenderZeroProcessedChannel(t *testing.T) {
	snap := stats.Snapshot{Stages: []stats.StageStats{{Channels: []stats.ChannelStats{{}}}}}
	out := String(snap)

	assert.Contains(t, out, "Average Processing Time: 0.00 ms")
	assert.NotContains(t, out, "NaN")
	assert.NotContains(t, out, "End-to-End Latency")
}

func TestChannelBalance(t *testing.T) {
	snap := sampleSnapshot()

	b := ChannelBalance(snap.Stages[0])
	assert.InDelta(t, 4.5, b.Mean, 1e-9)
	assert.InDelta(t, 0.7071, b.StdDev, 1e-3)

	single := ChannelBalance(snap.Stages[1])
	assert.Equal(t, Balance{Mean: 9}, single)

	assert.Equal(t, Balance{}, ChannelBalance(stats.StageStats{}))
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, ExportCSV(sampleSnapshot(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "stage", rows[0][0])
	assert.Equal(t, []string{"1", "2", "10", "3", "5", "1200.00", "0.00", "250"}, rows[2])
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	snap := sampleSnapshot()
	require.NoError(t, ExportJSON(snap, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got stats.Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, snap, got)
}

func TestExportBadPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "x.csv")
	assert.Error(t, ExportCSV(sampleSnapshot(), dir))
	assert.Error(t, ExportJSON(sampleSnapshot(), dir))
}
