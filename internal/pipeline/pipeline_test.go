package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, opts pipeline.Options, athletes ...athlete) (*pipeline.Pipeline, *memRoster, *recordingSink) {
	t.Helper()
	roster := newMemRoster()
	roster.tables[opts.InputFile] = newRawRoster(t, athletes...)
	sink := newRecordingSink()
	m := newTestMetrics()
	o := pipeline.NewOrchestrator(&fakeOracle{result: "2:05:31"}, discardLogger(), m)
	return pipeline.New(roster, o, sink, opts, discardLogger(), m), roster, sink
}

func TestPipeline_Run_HappyPath(t *testing.T) {
	opts := pipeline.Options{
		InputFile:   "/data/20240307-RunningLaneTrackChampionships-participants.csv",
		OutputDir:   "/out",
		DropColumns: domain.DefaultDropColumns,
		Workers:     2,
	}
	p, roster, sink := newPipeline(t, opts,
		athlete{id: "1", event: boys800, pr: "2:10:00", altitude: "4500"},
		athlete{id: "2", event: girlsMile, pr: "5:30:00", altitude: "500"},
		athlete{id: "3", event: boys3200, pr: "10:45:00", altitude: ""},
	)
	require.False(t, p.Ready())
	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Skipped)
	assert.Equal(t, pipeline.Summary{Records: 3, Eligible: 1, Converted: 1}, report.Summary)
	assert.Equal(t, "/out/20240307-RunningLaneTrackChampionships-participants-normalized.csv", report.OutputPath)

	require.Equal(t, []string{report.OutputPath}, sortedKeys(roster.saved))
	flushed := roster.saved[report.OutputPath]
	assert.NotContains(t, flushed.Columns, "Middle Name")
	assert.Equal(t, "2:05:31", flushed.Get(0, domain.PR800Field))
	assert.Equal(t, domain.MarkerValue, flushed.Get(0, domain.MarkerColumn))

	require.Len(t, sink.order, len(domain.Categories))
	for i, c := range domain.Categories {
		assert.Equal(t, c.SheetName, sink.order[i])
	}
	want := [][]string{
		{"Registration ID", "First Name", "Last Name", "Grade", "800m", domain.MarkerColumn},
		{"1", "First1", "Last1", "", "02:05:31", domain.MarkerValue},
	}
	if diff := cmp.Diff(want, sink.sheets["800m Boys"]); diff != "" {
		t.Fatalf("800m Boys sheet mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_DatedInput(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})

	opts := pipeline.Options{InputDir: "/data", InputSuffix: domain.DefaultInputSuffix, Workers: 1}
	p := pipeline.New(newMemRoster(), nil, newRecordingSink(), opts, discardLogger(), newTestMetrics())

	assert.Equal(t, "/data/20240307-RunningLaneTrackChampionships-participants.csv", p.InputPath())
}

func TestPipeline_Run_LoadError(t *testing.T) {
	opts := pipeline.Options{InputFile: "/data/roster.csv", Workers: 1}
	roster := newMemRoster()
	roster.loadErr = errors.New("permission denied")
	m := newTestMetrics()
	sink := newRecordingSink()
	p := pipeline.New(roster, pipeline.NewOrchestrator(&fakeOracle{}, discardLogger(), m), sink, opts, discardLogger(), m)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load roster")
	assert.Empty(t, sink.order)
	assert.False(t, p.Ready())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Runs.WithLabelValues("error")), 0)
}

func TestPipeline_Run_MissingEventColumn(t *testing.T) {
	opts := pipeline.Options{InputFile: "/data/roster.csv", Workers: 1}
	roster := newMemRoster()
	tbl, err := domain.NewTable([]string{"Registration ID", "First Name"}, [][]string{{"1", "A"}})
	require.NoError(t, err)
	roster.tables[opts.InputFile] = tbl
	m := newTestMetrics()
	p := pipeline.New(roster, pipeline.NewOrchestrator(&fakeOracle{}, discardLogger(), m), newRecordingSink(), opts, discardLogger(), m)

	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestPipeline_Run_OracleOfflineNothingPublished(t *testing.T) {
	opts := pipeline.Options{InputFile: "/data/roster.csv", Workers: 1}
	roster := newMemRoster()
	roster.tables[opts.InputFile] = newRawRoster(t, athlete{id: "1", event: boys800, pr: "0:02:10", altitude: "5000"})
	sink := newRecordingSink()
	m := newTestMetrics()
	o := pipeline.NewOrchestrator(&fakeOracle{openErr: errors.New("calculator offline")}, discardLogger(), m)
	p := pipeline.New(roster, o, sink, opts, discardLogger(), m)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, roster.saved, "nothing is flushed when the run aborts")
	assert.Empty(t, sink.order)
}

func TestPipeline_Run_PublishErrorFailsRun(t *testing.T) {
	opts := pipeline.Options{InputFile: "/data/roster.csv", Workers: 1}
	p, _, sink := newPipeline(t, opts, athlete{id: "1", event: boys800, pr: "0:02:10", altitude: "100"})
	sink.err = errors.New("sheet locked")

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet locked")
	assert.Contains(t, err.Error(), `publish "3200m Girls"`)
	assert.False(t, p.Ready())
}

func TestPipeline_Run_SkipsUnchangedInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(input, []byte("v1"), 0o600))

	opts := pipeline.Options{InputFile: input, Workers: 1, SkipUnchanged: true}
	p, roster, sink := newPipeline(t, opts, athlete{id: "1", event: boys800, pr: "0:02:10", altitude: "5000"})

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Len(t, sink.order, len(domain.Categories))

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Len(t, sink.order, len(domain.Categories), "skipped run publishes nothing")

	require.NoError(t, os.WriteFile(input, []byte("v2"), 0o600))
	third, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Len(t, sink.order, 2*len(domain.Categories))
	assert.Len(t, roster.saved, 1)
}

func TestChecksumFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("Event\n800m\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("Event\nMile\n"), 0o600))

	sa, err := pipeline.ChecksumFile(a)
	require.NoError(t, err)
	sa2, err := pipeline.ChecksumFile(a)
	require.NoError(t, err)
	sb, err := pipeline.ChecksumFile(b)
	require.NoError(t, err)

	assert.Equal(t, sa, sa2)
	assert.NotEqual(t, sa, sb)

	_, err = pipeline.ChecksumFile(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}
