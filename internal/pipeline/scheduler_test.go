package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	runs atomic.Int32
}

func (c *countingRunner) Run(_ context.Context) (pipeline.Report, error) {
	c.runs.Add(1)
	return pipeline.Report{}, nil
}

func TestNewScheduler_InvalidExpression(t *testing.T) {
	_, err := pipeline.NewScheduler("every tuesday", &countingRunner{}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every tuesday")
}

func TestScheduler_InitialRunThenStop(t *testing.T) {
	runner := &countingRunner{}
	s, err := pipeline.NewScheduler("@every 1h", runner, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	s, err := pipeline.NewScheduler("@every 1s", runner, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func freezeDate(t *testing.T, day time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(day))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func todaysExport(dir string) func() string {
	return func() string { return domain.DatedInputPath(dir, domain.DefaultInputSuffix) }
}

func TestMatchInput_DatedExport(t *testing.T) {
	freezeDate(t, time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC))
	match := pipeline.MatchInput(todaysExport("/data"))

	assert.True(t, match("/data/20240307"+domain.DefaultInputSuffix))
	assert.False(t, match("/data/20240306"+domain.DefaultInputSuffix), "another day's export cannot be loaded")
	assert.False(t, match("/data/20240307-RunningLaneTrackChampionships-participants-normalized.csv"))
	assert.False(t, match("/data/notes.txt"))
}

func TestMatchInput_FollowsDateRollover(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, time.March, 7, 23, 59, 0, 0, time.UTC))
	domain.SetClock(fc)
	t.Cleanup(func() { domain.SetClock(nil) })
	match := pipeline.MatchInput(todaysExport("/data"))

	assert.True(t, match("/data/20240307"+domain.DefaultInputSuffix))
	fc.Advance(2 * time.Minute)
	assert.False(t, match("/data/20240307"+domain.DefaultInputSuffix))
	assert.True(t, match("/data/20240308"+domain.DefaultInputSuffix))
}

func TestMatchInput_ExplicitFile(t *testing.T) {
	match := pipeline.MatchInput(func() string { return "/data/roster.csv" })
	assert.True(t, match("/elsewhere/roster.csv"))
	assert.False(t, match("/data/20240307"+domain.DefaultInputSuffix))
}

func TestWatcher_RunsOnlyForTodaysExport(t *testing.T) {
	freezeDate(t, time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	runner := &countingRunner{}
	w, err := pipeline.NewWatcher(dir, pipeline.MatchInput(todaysExport(dir)), runner, 20*time.Millisecond, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240306"+domain.DefaultInputSuffix), []byte("Event\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), runner.runs.Load(), "unrelated files must not trigger a run")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240307"+domain.DefaultInputSuffix), []byte("Event\n"), 0o600))
	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := pipeline.NewWatcher(filepath.Join(t.TempDir(), "missing"), pipeline.MatchInput(func() string { return "roster.csv" }), &countingRunner{}, time.Millisecond, discardLogger())
	require.Error(t, err)
}
