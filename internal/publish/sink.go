// Package publish defines the sheet sink boundary and the fan-out used to
// write every assembled sheet to each configured destination.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/seedtime-etl/internal/observability"
)

// Sink replaces the contents of a named sheet. rows holds the header row
// followed by the data rows. Publishing the same rows twice leaves the same
// final state.
type Sink interface {
	Publish(ctx context.Context, sheet string, rows [][]string) error
}

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink Sink
}

// MultiSink publishes each sheet to every sink in order. A failing sink does
// not stop the others; all failures are returned together.
type MultiSink struct {
	sinks   []Named
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewMultiSink creates a fan-out over sinks.
func NewMultiSink(metrics *observability.Metrics, logger *slog.Logger, sinks ...Named) *MultiSink {
	return &MultiSink{sinks: sinks, metrics: metrics, logger: logger}
}

// Len returns the number of configured sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) Publish(ctx context.Context, sheet string, rows [][]string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Publish(ctx, sheet, rows); err != nil {
			m.metrics.PublishErrors.WithLabelValues(s.Name).Inc()
			m.logger.Error("publish sheet failed", "sink", s.Name, "sheet", sheet, "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name, err))
			continue
		}
		m.metrics.SheetsPublished.WithLabelValues(s.Name).Inc()
		m.logger.Debug("sheet published", "sink", s.Name, "sheet", sheet, "rows", len(rows))
	}
	return errors.Join(errs...)
}

// Chunk splits rows into consecutive batches of at most size rows. A size
// below 1 yields a single batch.
func Chunk(rows [][]string, size int) [][][]string {
	if len(rows) == 0 {
		return nil
	}
	if size < 1 || size >= len(rows) {
		return [][][]string{rows}
	}
	batches := make([][][]string, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batches = append(batches, rows[start:end])
	}
	return batches
}

type runIDKey struct{}

// WithRunID tags ctx with the identifier of the pipeline run that produced the sheets.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run identifier carried by ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
