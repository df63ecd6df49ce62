// Package csvfile reads and writes roster tables as CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
)

const bom = "\ufeff"

// Store implements pipeline.RosterStore on the local filesystem.
type Store struct{}

// NewStore creates a Store.
func NewStore() *Store { return &Store{} }

// Load reads a roster export. The first record is the header. Rows shorter
// than the header are padded; a leading byte-order mark is ignored.
func (s *Store) Load(ctx context.Context, path string) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses CSV from r into a table.
func Read(r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty csv file")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	t, err := domain.NewTable(uniqueHeader(header), records[1:])
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return t, nil
}

// uniqueHeader names blank header cells "Unnamed: <position>" and suffixes
// repeated names with ".1", ".2", ... in order of appearance, so exports with
// trailing commas or repeated questions still load. The first occurrence of a
// name keeps it unchanged.
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	counts := make(map[string]int, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		for n := counts[name]; n > 0; n = counts[name] {
			counts[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		}
		counts[name]++
		out[i] = name
	}
	return out
}

// Save writes t to path, replacing any existing file. The file is written
// to a temporary name in the same directory and renamed into place.
func (s *Store) Save(ctx context.Context, path string, t *domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, t); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Write encodes t as CSV, header first.
func Write(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
