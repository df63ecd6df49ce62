// Package sqlite stores published sheets in a single-file workbook: named,
// ordered sheets of rows, replaced whole on every publish.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/publish"
	_ "modernc.org/sqlite"
)

// ErrSheetNotFound is returned by Sheet for an unknown name.
var ErrSheetNotFound = errors.New("sheet not found")

// Workbook is a SQLite-backed sheet container.
type Workbook struct {
	db        *sql.DB
	batchSize int
}

// Open opens (or creates) the workbook file at path. batchSize bounds the
// number of rows inserted per prepared-statement batch.
func Open(path string, batchSize int) (*Workbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create workbook directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	wb := &Workbook{db: db, batchSize: batchSize}
	if err := wb.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return wb, nil
}

// Close closes the database.
func (w *Workbook) Close() error {
	return w.db.Close()
}

func (w *Workbook) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sheets (
			name       TEXT PRIMARY KEY,
			position   INTEGER NOT NULL,
			columns    TEXT NOT NULL,
			run_id     TEXT NOT NULL DEFAULT '',
			digest     TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sheet_rows (
			sheet     TEXT NOT NULL REFERENCES sheets(name) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			cells     TEXT NOT NULL,
			PRIMARY KEY (sheet, row_index)
		)`,
	}
	for _, m := range migrations {
		if _, err := w.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Publish replaces the named sheet with rows (header first) in one
// transaction. A new sheet is appended after the existing ones; a replaced
// sheet keeps its position.
func (w *Workbook) Publish(ctx context.Context, sheet string, rows [][]string) error {
	var columns []string
	var data [][]string
	if len(rows) > 0 {
		columns, data = rows[0], rows[1:]
	}
	header, err := json.Marshal(nonNil(columns))
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	digest := domain.EventSheet{Name: sheet, Columns: columns, Rows: data}.Digest()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, sheet); err != nil {
		return fmt.Errorf("clear sheet %q: %w", sheet, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sheets (name, position, columns, run_id, digest, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position) + 1, 0) FROM sheets), ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			columns = excluded.columns,
			run_id = excluded.run_id,
			digest = excluded.digest,
			updated_at = excluded.updated_at`,
		sheet, string(header), publish.RunID(ctx), digest)
	if err != nil {
		return fmt.Errorf("upsert sheet %q: %w", sheet, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (sheet, row_index, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	index := 0
	for _, batch := range publish.Chunk(data, w.batchSize) {
		for _, row := range batch {
			cells, err := json.Marshal(nonNil(row))
			if err != nil {
				return fmt.Errorf("encode row %d: %w", index, err)
			}
			if _, err := stmt.ExecContext(ctx, sheet, index, string(cells)); err != nil {
				return fmt.Errorf("insert row %d of %q: %w", index, sheet, err)
			}
			index++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sheet %q: %w", sheet, err)
	}
	return nil
}

// Sheets returns every sheet in position order.
func (w *Workbook) Sheets(ctx context.Context) ([]domain.EventSheet, error) {
	names, err := w.names(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventSheet, 0, len(names))
	for _, name := range names {
		s, err := w.Sheet(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Sheet reads one sheet by name.
func (w *Workbook) Sheet(ctx context.Context, name string) (domain.EventSheet, error) {
	var header string
	err := w.db.QueryRowContext(ctx, `SELECT columns FROM sheets WHERE name = ?`, name).Scan(&header)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EventSheet{}, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	if err != nil {
		return domain.EventSheet{}, fmt.Errorf("read sheet %q: %w", name, err)
	}

	s := domain.EventSheet{Name: name, Rows: [][]string{}}
	if err := json.Unmarshal([]byte(header), &s.Columns); err != nil {
		return domain.EventSheet{}, fmt.Errorf("decode header of %q: %w", name, err)
	}

	rows, err := w.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY row_index`, name)
	if err != nil {
		return domain.EventSheet{}, fmt.Errorf("read rows of %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return domain.EventSheet{}, fmt.Errorf("scan row of %q: %w", name, err)
		}
		var row []string
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return domain.EventSheet{}, fmt.Errorf("decode row of %q: %w", name, err)
		}
		s.Rows = append(s.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.EventSheet{}, fmt.Errorf("read rows of %q: %w", name, err)
	}
	return s, nil
}

// Digest returns the stored digest of a sheet.
func (w *Workbook) Digest(ctx context.Context, name string) (string, error) {
	var digest string
	err := w.db.QueryRowContext(ctx, `SELECT digest FROM sheets WHERE name = ?`, name).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read digest of %q: %w", name, err)
	}
	return digest, nil
}

func (w *Workbook) names(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT name FROM sheets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list sheets: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
