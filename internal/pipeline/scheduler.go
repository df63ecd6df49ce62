package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler triggers runs on a cron expression. A trigger that fires while a
// run is still in progress is skipped.
type Scheduler struct {
	expr     string
	schedule cron.Schedule
	runner   Runner
	logger   *slog.Logger
}

// NewScheduler parses a standard five-field cron expression. Descriptors such
// as "@hourly" and "@every 30m" are accepted.
func NewScheduler(expr string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return &Scheduler{expr: expr, schedule: schedule, runner: runner, logger: logger}, nil
}

// Run performs an initial pass, then runs on schedule until ctx is cancelled.
// It waits for an in-flight run to finish before returning. Run failures are
// logged by the pipeline and do not stop the schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		_, _ = s.runner.Run(ctx)
	}))

	c := cron.New(cron.WithLogger(cl))
	id := c.Schedule(s.schedule, job)

	var initial sync.WaitGroup
	initial.Add(1)
	go func() {
		defer initial.Done()
		job.Run()
	}()

	c.Start()
	s.logger.Info("scheduler started", "schedule", s.expr, "next", c.Entry(id).Next)

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	initial.Wait()
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
