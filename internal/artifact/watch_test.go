package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDropsReplacedMetrics(t *testing.T) {
	dir := t.TempDir()
	s := New(WithDir(dir))
	_, err := s.SaveMetrics(&Metrics{ModelVersion: "v1"})
	require.NoError(t, err)

	m, err := s.LoadMetrics()
	require.NoError(t, err)
	require.Equal(t, "v1", m.Version())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	// another process (churn-train) replaces the file behind the store's back
	other := New(WithDir(dir))
	_, err = other.SaveMetrics(&Metrics{ModelVersion: "v2"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		m, err := s.LoadMetrics()
		return err == nil && m.Version() == "v2"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(WithDir(dir))
	_, err := s.SaveMetrics(&Metrics{ModelVersion: "v1"})
	require.NoError(t, err)
	first, err := s.LoadMetrics()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ROCChartFile), []byte("png"), 0o644))
	time.Sleep(100 * time.Millisecond)

	again, err := s.LoadMetrics()
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestWatchCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "models")
	s := New(WithDir(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
