package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeAged(t *testing.T, dir, name string, age time.Duration, now time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mod := now.Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	tempDir, processedDir := t.TempDir(), t.TempDir()
	now := time.Now()

	oldSource := writeAged(t, tempDir, "aaaaaaaaaaa_original.mp4", 2*time.Hour, now)
	freshSource := writeAged(t, tempDir, "bbbbbbbbbbb_original.mp4", 10*time.Minute, now)
	oldClip := writeAged(t, processedDir, "viral_aaaaaaaaaaa_1.mp4", 61*time.Minute, now)
	sample := writeAged(t, processedDir, "sample.mp4", 48*time.Hour, now)
	require.NoError(t, os.Mkdir(filepath.Join(processedDir, "nested"), 0o755))

	sweeper := NewSweeper([]string{tempDir, processedDir}, time.Hour, zerolog.Nop(), "sample.mp4")
	sweeper.now = func() time.Time { return now }

	stats := sweeper.Sweep()
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, stats.Scanned)

	assert.False(t, exists(oldSource))
	assert.False(t, exists(oldClip))
	assert.True(t, exists(freshSource))
	assert.True(t, exists(sample))
	assert.True(t, exists(filepath.Join(processedDir, "nested")))
}

func TestSweepContinuesAfterDeleteFailure(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	first := writeAged(t, dir, "a.mp4", 2*time.Hour, now)
	second := writeAged(t, dir, "b.mp4", 2*time.Hour, now)

	sweeper := NewSweeper([]string{dir}, time.Hour, zerolog.Nop())
	sweeper.now = func() time.Time { return now }
	sweeper.remove = func(path string) error {
		if path == first {
			return errors.New("permission denied")
		}
		return os.Remove(path)
	}

	stats := sweeper.Sweep()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Removed)
	assert.True(t, exists(first))
	assert.False(t, exists(second))
}

func TestSweepMissingDirectory(t *testing.T) {
	sweeper := NewSweeper([]string{filepath.Join(t.TempDir(), "absent")}, time.Hour, zerolog.Nop())
	assert.Equal(t, SweepStats{}, sweeper.Sweep())
}

func TestSweeperStartRunsImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	now := time.Now()
	old := writeAged(t, dir, "old.mp4", 2*time.Hour, now)

	sweeper := NewSweeper([]string{dir}, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := sweeper.Start(ctx, time.Hour)

	require.Eventually(t, func() bool { return !exists(old) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
