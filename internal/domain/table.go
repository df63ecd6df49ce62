package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Column names shared by the roster export and the published sheets.
const (
	EventColumn  = "Event"
	MarkerColumn = "Altitude Adjusted*"
	MarkerValue  = "*"
)

// DefaultDropColumns are roster columns removed at ingestion.
var DefaultDropColumns = []string{"Middle Name", "Street Address", "City", "Country", "Zip Code"}

// Table is the in-memory roster: an ordered header and rows aligned to it.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewTable builds a table from a header and data rows. Short rows are padded
// with empty cells; long rows are rejected.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	t := &Table{Columns: slices.Clone(columns)}
	if err := t.reindex(); err != nil {
		return nil, err
	}
	t.Rows = make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i, len(row), len(columns))
		}
		cells := make([]string, len(columns))
		copy(cells, row)
		t.Rows[i] = cells
	}
	return t, nil
}

func (t *Table) reindex() error {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		t.index[c] = i
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Col returns the position of a column.
func (t *Table) Col(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Get returns the cell at row/column, or "" when the column does not exist.
func (t *Table) Get(row int, column string) string {
	i, ok := t.index[column]
	if !ok {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell. Unknown columns are an error.
func (t *Table) Set(row int, column, value string) error {
	i, ok := t.index[column]
	if !ok {
		return fmt.Errorf("set row %d: unknown column %q", row, column)
	}
	t.Rows[row][i] = value
	return nil
}

// AddColumn appends a column filled with value. Existing columns are left alone.
func (t *Table) AddColumn(name, value string) {
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.Columns)
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], value)
	}
}

// DropColumns removes the named columns. Names not present are ignored.
func (t *Table) DropColumns(names ...string) {
	drop := make(map[int]bool, len(names))
	for _, n := range names {
		if i, ok := t.index[n]; ok {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	t.Columns = filterIndexes(t.Columns, drop)
	for i, row := range t.Rows {
		t.Rows[i] = filterIndexes(row, drop)
	}
	_ = t.reindex()
}

// RenameColumns renames columns according to mapping (old -> new).
func (t *Table) RenameColumns(mapping map[string]string) error {
	for i, c := range t.Columns {
		if to, ok := mapping[c]; ok {
			t.Columns[i] = to
		}
	}
	if err := t.reindex(); err != nil {
		return fmt.Errorf("rename columns: %w", err)
	}
	return nil
}

// Select returns a new table holding copies of the given rows, in order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{Columns: slices.Clone(t.Columns), Rows: make([][]string, len(rows))}
	for i, r := range rows {
		out.Rows[i] = slices.Clone(t.Rows[r])
	}
	_ = out.reindex()
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	all := make([]int, len(t.Rows))
	for i := range all {
		all[i] = i
	}
	return t.Select(all)
}

// ErrMissingColumn is returned when a required column is absent from the input.
var ErrMissingColumn = errors.New("missing column")

// PrepareRoster drops the ingestion-time columns and appends the empty
// adjustment marker column, clearing it if the export already has one. The
// roster must carry an Event column.
func PrepareRoster(t *Table, drop []string) error {
	if _, ok := t.Col(EventColumn); !ok {
		return fmt.Errorf("%w: %q", ErrMissingColumn, EventColumn)
	}
	t.DropColumns(drop...)
	if i, ok := t.Col(MarkerColumn); ok {
		for _, row := range t.Rows {
			row[i] = ""
		}
		return nil
	}
	t.AddColumn(MarkerColumn, "")
	return nil
}

func filterIndexes(in []string, drop map[int]bool) []string {
	out := make([]string, 0, len(in)-len(drop))
	for i, v := range in {
		if !drop[i] {
			out = append(out, v)
		}
	}
	return out
}
