package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuelab/internal/runner"
	"queuelab/internal/stats"
	"queuelab/internal/storage"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, v.BindPFlags(rootCmd.Flags()))
	require.NoError(t, v.BindPFlags(rootCmd.PersistentFlags()))
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, runner.DefaultConfig(), cfg)
}

func TestLoadConfigPerStageLists(t *testing.T) {
	v := newViper(t)
	v.Set("stages", 3)
	v.Set("channels", []int{1, 2, 3})
	v.Set("capacity", []int{4})

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []runner.StageConfig{
		{Channels: 1, Capacity: 4},
		{Channels: 2, Capacity: 4},
		{Channels: 3, Capacity: 4},
	}, cfg.Stages)
}

func TestLoadConfigRejectsMismatchedList(t *testing.T) {
	v := newViper(t)
	v.Set("stages", 3)
	v.Set("channels", []int{1, 2})

	_, err := loadConfig(v)
	assert.ErrorIs(t, err, runner.ErrInvalidConfig)

	v.Set("channels", []int{2})
	v.Set("capacity", []int{0})
	_, err = loadConfig(v)
	assert.ErrorIs(t, err, runner.ErrInvalidConfig)

	v.Set("capacity", []int{1})
	v.Set("stages", 0)
	_, err = loadConfig(v)
	assert.ErrorIs(t, err, runner.ErrInvalidConfig)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("QUEUELAB_CHANNELS", "1, 2,3")
	t.Setenv("QUEUELAB_MIN_PROCESSING", "10ms")

	v := newViper(t)
	v.SetEnvPrefix("QUEUELAB")
	v.SetEnvKeyReplacer(stringsReplacer())
	v.AutomaticEnv()

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Stages[2].Channels)
	assert.Equal(t, 1, cfg.Stages[0].Channels)
	assert.Equal(t, 10*time.Millisecond, cfg.MinProcessing)
}

func TestConfigFileRoundTrip(t *testing.T) {
	want := runner.DefaultConfig()
	want.Stages = []runner.StageConfig{{Channels: 1, Capacity: 2}, {Channels: 4, Capacity: 8}}
	want.GenerationInterval = 250 * time.Millisecond
	want.Seed = 11

	data, err := marshalConfig(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "min-processing:")
	assert.Contains(t, string(data), "500ms")

	path := filepath.Join(t.TempDir(), "queuelab.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	got, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIntList(t *testing.T) {
	tests := []struct {
		in   any
		want []int
	}{
		{nil, nil},
		{5, []int{5}},
		{"7", []int{7}},
		{"[1,2]", []int{1, 2}},
		{[]any{3, 4}, []int{3, 4}},
		{[]int{9}, []int{9}},
	}
	for _, tt := range tests {
		got, err := intList(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := intList("1,x")
	assert.Error(t, err)
}

func TestRunSimulationHeadless(t *testing.T) {
	dir := t.TempDir()
	v := newViper(t)
	v.Set("stages", 2)
	v.Set("channels", []int{2})
	v.Set("capacity", []int{2})
	v.Set("interval", "5ms")
	v.Set("min-processing", "1ms")
	v.Set("max-processing", "3ms")
	v.Set("duration", "60ms")
	v.Set("poll-interval", "5ms")
	v.Set("seed", 5)
	v.Set("log-level", "error")
	v.Set("metrics-addr", "127.0.0.1:0")
	v.Set("history", filepath.Join(dir, "h.db"))
	v.Set("out", filepath.Join(dir, "run"))

	require.NoError(t, runSimulation(context.Background(), v))

	assert.FileExists(t, filepath.Join(dir, "run.csv"))
	assert.FileExists(t, filepath.Join(dir, "run.json"))

	store, err := storage.Open(filepath.Join(dir, "h.db"))
	require.NoError(t, err)
	defer store.Close()
	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Len(t, items[0].Config.Stages, 2)
	assert.Equal(t, items[0].Summary.Generated, items[0].Summary.Admitted+items[0].Snapshot.Stages[0].DroppedRequests)
}

func TestRunSimulationInvalidConfig(t *testing.T) {
	v := newViper(t)
	v.Set("capacity", []int{0})
	assert.ErrorIs(t, runSimulation(context.Background(), v), runner.ErrInvalidConfig)
}

func TestPrintHistory(t *testing.T) {
	var empty bytes.Buffer
	require.NoError(t, printHistory(&empty, nil))
	assert.Equal(t, "No runs recorded.\n", empty.String())

	item, err := storage.NewHistoryItem(runner.DefaultConfig(), 4, stats.Snapshot{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, []storage.HistoryItem{item}))
	assert.Contains(t, out.String(), item.ID)
	assert.Contains(t, out.String(), "GENERATED")
}
