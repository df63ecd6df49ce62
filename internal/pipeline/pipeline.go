package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
	"github.com/couchcryptid/seedtime-etl/internal/publish"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// RosterStore reads and writes roster tables.
type RosterStore interface {
	Load(ctx context.Context, path string) (*domain.Table, error)
	Save(ctx context.Context, path string, t *domain.Table) error
}

// Options controls where a run reads and writes and how it converts.
type Options struct {
	// InputFile, when set, is read as-is. Otherwise the input is today's
	// dated export under InputDir.
	InputFile   string
	InputDir    string
	InputSuffix string
	OutputDir   string
	DropColumns []string
	Workers     int
	// SkipUnchanged skips a run whose input checksum matches the last
	// successful run.
	SkipUnchanged bool
}

// Report describes one completed run.
type Report struct {
	RunID      string
	InputPath  string
	OutputPath string
	Skipped    bool
	Summary    Summary
	Sheets     []domain.EventSheet
}

// Pipeline runs load, convert, flush, assemble, and publish as one unit.
type Pipeline struct {
	roster       RosterStore
	orchestrator *Orchestrator
	sink         publish.Sink
	opts         Options
	logger       *slog.Logger
	metrics      *observability.Metrics
	clock        clockwork.Clock
	ready        atomic.Bool

	mu           sync.Mutex // serializes runs
	lastChecksum uint64
	hasChecksum  bool
}

// New creates a Pipeline.
func New(roster RosterStore, orchestrator *Orchestrator, sink publish.Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		roster:       roster,
		orchestrator: orchestrator,
		sink:         sink,
		opts:         opts,
		logger:       logger,
		metrics:      metrics,
		clock:        clockwork.NewRealClock(),
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Ready reports whether a run has completed successfully.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// InputPath resolves the roster file for the current run.
func (p *Pipeline) InputPath() string {
	if p.opts.InputFile != "" {
		return p.opts.InputFile
	}
	return domain.DatedInputPath(p.opts.InputDir, p.opts.InputSuffix)
}

// Run executes one complete pass. Concurrent calls are serialized.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := Report{RunID: uuid.NewString(), InputPath: p.InputPath()}
	logger := p.logger.With("run_id", report.RunID)
	ctx = publish.WithRunID(ctx, report.RunID)

	start := p.clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx, logger, &report)
	switch {
	case err != nil:
		p.metrics.Runs.WithLabelValues("error").Inc()
		logger.Error("pipeline run failed", "input", report.InputPath, "error", err)
		return report, err
	case report.Skipped:
		p.metrics.Runs.WithLabelValues("skipped").Inc()
		logger.Info("input unchanged, run skipped", "input", report.InputPath)
		return report, nil
	}

	elapsed := p.clock.Since(start)
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(elapsed.Seconds())
	p.ready.Store(true)
	logger.Info("pipeline run complete",
		"input", report.InputPath,
		"output", report.OutputPath,
		"records", report.Summary.Records,
		"eligible", report.Summary.Eligible,
		"converted", report.Summary.Converted,
		"failed", report.Summary.Failed,
		"sheets", len(report.Sheets),
		"duration", elapsed,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, report *Report) error {
	var sum uint64
	if p.opts.SkipUnchanged {
		var err error
		sum, err = ChecksumFile(report.InputPath)
		if err != nil {
			return err
		}
		if p.hasChecksum && sum == p.lastChecksum {
			report.Skipped = true
			return nil
		}
	}

	t, err := p.roster.Load(ctx, report.InputPath)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	p.metrics.RecordsLoaded.Add(float64(t.Len()))
	logger.Info("roster loaded", "input", report.InputPath, "records", t.Len(), "columns", len(t.Columns))

	if err := domain.PrepareRoster(t, p.opts.DropColumns); err != nil {
		return fmt.Errorf("prepare roster: %w", err)
	}

	report.Summary, err = p.orchestrator.Run(ctx, t, p.opts.Workers)
	if err != nil {
		return err
	}

	report.OutputPath = domain.NormalizedPath(p.opts.OutputDir, report.InputPath)
	if err := p.roster.Save(ctx, report.OutputPath, t); err != nil {
		return fmt.Errorf("flush normalized roster: %w", err)
	}

	report.Sheets, err = domain.Assemble(t)
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range report.Sheets {
		if err := p.sink.Publish(ctx, s.Name, s.Values()); err != nil {
			errs = append(errs, fmt.Errorf("publish %q: %w", s.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if p.opts.SkipUnchanged {
		p.lastChecksum, p.hasChecksum = sum, true
	}
	return nil
}
