package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
)

// Summary counts what a conversion pass did.
type Summary struct {
	Records   int
	Eligible  int
	Converted int
	Failed    int
}

// Orchestrator fans eligible records out to a fixed pool of workers, each
// with its own oracle session, and writes the converted times back once every
// worker has finished.
type Orchestrator struct {
	oracle  domain.Oracle
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewOrchestrator creates an Orchestrator backed by oracle.
func NewOrchestrator(oracle domain.Oracle, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{oracle: oracle, logger: logger, metrics: metrics}
}

type workerResult struct {
	results  []domain.ConversionResult
	eligible int
	failed   int
	err      error
}

// Run converts every eligible record of t using workers concurrent sessions.
//
// Workers only read the table. Each collects its results in a private buffer;
// the buffers are merged into t after all workers return. A failed conversion
// leaves its record untouched. If any worker cannot open its session, or ctx is
// cancelled, Run returns an error and t is not modified.
func (o *Orchestrator) Run(ctx context.Context, t *domain.Table, workers int) (Summary, error) {
	if _, ok := t.Col(domain.MarkerColumn); !ok {
		return Summary{}, fmt.Errorf("orchestrate: %w: %q", domain.ErrMissingColumn, domain.MarkerColumn)
	}

	ranges := Partition(t.Len(), workers)
	out := make([]workerResult, len(ranges))

	var wg sync.WaitGroup
	for w, r := range ranges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[w] = o.work(ctx, t, w, r)
		}()
	}
	wg.Wait()

	summary := Summary{Records: t.Len()}
	var errs []error
	for _, res := range out {
		summary.Eligible += res.eligible
		summary.Failed += res.failed
		summary.Converted += len(res.results)
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return summary, fmt.Errorf("orchestrate: %w", err)
	}

	for _, res := range out {
		if err := merge(t, res.results); err != nil {
			return summary, fmt.Errorf("orchestrate: %w", err)
		}
	}
	return summary, nil
}

// work processes one range in ascending index order on a dedicated session.
func (o *Orchestrator) work(ctx context.Context, t *domain.Table, id int, r Range) workerResult {
	var res workerResult
	if r.Len() == 0 {
		return res
	}
	logger := o.logger.With("worker", id)

	sess, err := o.oracle.Open(ctx)
	if err != nil {
		res.err = fmt.Errorf("worker %d: %w", id, err)
		return res
	}
	defer func() {
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close oracle session failed", "error", err)
		}
	}()

	for i := r.Start; i < r.End; i++ {
		if err := ctx.Err(); err != nil {
			res.err = fmt.Errorf("worker %d stopped at index %d: %w", id, i, err)
			return res
		}

		label := t.Get(i, domain.EventColumn)
		d, err := domain.Classify(label)
		if err != nil {
			continue
		}
		elevation, ok := domain.Eligible(t, i, d)
		if !ok {
			continue
		}
		res.eligible++

		pr := t.Get(i, d.PRField)
		converted, err := sess.Convert(ctx, domain.ConversionRequest{
			Elevation:      elevation,
			DistanceFactor: d.DistanceFactor,
			InputTime:      pr,
		})
		if err != nil {
			if ctx.Err() != nil {
				res.err = fmt.Errorf("worker %d stopped at index %d: %w", id, i, ctx.Err())
				return res
			}
			res.failed++
			o.metrics.Conversions.WithLabelValues("error").Inc()
			logger.Warn("conversion failed, record left unadjusted",
				"index", i,
				"event", label,
				"altitude", elevation,
				"error", err,
			)
			continue
		}

		o.metrics.Conversions.WithLabelValues("success").Inc()
		logger.Info("converted seed time",
			"index", i,
			"event", label,
			"altitude", elevation,
			"pr", pr,
			"converted", converted,
		)
		res.results = append(res.results, domain.ConversionResult{Index: i, Field: d.PRField, ConvertedTime: converted})
	}
	return res
}

func merge(t *domain.Table, results []domain.ConversionResult) error {
	for _, r := range results {
		if err := t.Set(r.Index, r.Field, r.ConvertedTime); err != nil {
			return err
		}
		if err := t.Set(r.Index, domain.MarkerColumn, domain.MarkerValue); err != nil {
			return err
		}
	}
	return nil
}
