// Package postgres mirrors published sheets into a Postgres table so other
// services can query them.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/publish"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS published_sheets (
	sheet_name   TEXT        NOT NULL,
	row_index    INTEGER     NOT NULL,
	cells        JSONB       NOT NULL,
	run_id       TEXT        NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (sheet_name, row_index)
)`

const insertRow = `INSERT INTO published_sheets (sheet_name, row_index, cells, run_id) VALUES ($1, $2, $3, $4)`

// Startup connection retry. The database often comes up alongside the service.
const (
	connectAttempts   = 5
	connectBackoff    = 500 * time.Millisecond
	maxConnectBackoff = 5 * time.Second
)

// Sink replaces a sheet's rows in one transaction per Publish. Row 0 is the
// header. It implements publish.Sink.
type Sink struct {
	pool      *pgxpool.Pool
	batchSize int
}

// Open connects to dsn and creates the table if needed.
func Open(ctx context.Context, dsn string, batchSize int) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pingWithRetry(ctx, pool.Ping, connectAttempts, connectBackoff, maxConnectBackoff); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create published_sheets table: %w", err)
	}
	return &Sink{pool: pool, batchSize: batchSize}, nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// Publish deletes the previous version of sheet and inserts rows.
func (s *Sink) Publish(ctx context.Context, sheet string, rows [][]string) error {
	batches, err := buildBatches(sheet, rows, publish.RunID(ctx), s.batchSize)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM published_sheets WHERE sheet_name = $1`, sheet); err != nil {
		return fmt.Errorf("clear sheet %q: %w", sheet, err)
	}
	for _, b := range batches {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("insert sheet %q: %w", sheet, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sheet %q: %w", sheet, err)
	}
	return nil
}

// pingWithRetry calls ping up to attempts times, doubling the wait between
// tries up to maxWait. It gives up early when ctx is cancelled.
func pingWithRetry(ctx context.Context, ping func(context.Context) error, attempts int, wait, maxWait time.Duration) error {
	var err error
	for i := range attempts {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if !retry.SleepWithContext(ctx, wait) {
			return errors.Join(err, ctx.Err())
		}
		wait = retry.NextBackoff(wait, maxWait)
	}
	return err
}

// buildBatches queues one insert per row, split into batches of at most size rows.
func buildBatches(sheet string, rows [][]string, runID string, size int) ([]*pgx.Batch, error) {
	chunks := publish.Chunk(rows, size)
	out := make([]*pgx.Batch, 0, len(chunks))
	index := 0
	for _, chunk := range chunks {
		b := &pgx.Batch{}
		for _, row := range chunk {
			cells, err := json.Marshal(row)
			if err != nil {
				return nil, fmt.Errorf("encode row %d: %w", index, err)
			}
			b.Queue(insertRow, sheet, index, cells, runID)
			index++
		}
		out = append(out, b)
	}
	return out, nil
}
