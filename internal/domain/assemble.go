package domain

import (
	"encoding/hex"
	"fmt"
	"slices"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// EventSheet is one published leaderboard: the rows of a single division,
// sorted by seed time, without the columns that belong to other disciplines.
type EventSheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Values returns the header followed by the data rows, as handed to a sink.
func (s EventSheet) Values() [][]string {
	out := make([][]string, 0, len(s.Rows)+1)
	out = append(out, s.Columns)
	return append(out, s.Rows...)
}

// Digest fingerprints the sheet contents, including its name.
func (s EventSheet) Digest() string {
	h := xxhash.New()
	_, _ = h.WriteString(s.Name)
	for _, row := range s.Values() {
		_, _ = h.WriteString("\x1e")
		for _, cell := range row {
			_, _ = h.WriteString(cell)
			_, _ = h.WriteString("\x1f")
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Assemble splits the normalized roster into one sheet per division, in
// Categories order. The input table is not modified. Divisions with no
// entrants still get a sheet holding only the header.
func Assemble(t *Table) ([]EventSheet, error) {
	base := t.Clone()
	base.DropColumns(AltitudeFields()...)
	if err := base.RenameColumns(HeaderMapping); err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	byLabel := make(map[string][]int, len(Categories))
	for i := range base.Rows {
		label := base.Get(i, EventColumn)
		byLabel[label] = append(byLabel[label], i)
	}

	sheets := make([]EventSheet, 0, len(Categories))
	for _, c := range Categories {
		sheets = append(sheets, buildSheet(base.Select(byLabel[c.Label]), c))
	}
	return sheets, nil
}

func buildSheet(part *Table, c EventCategory) EventSheet {
	timeCol := c.Discipline.TimeColumn
	if _, ok := part.Col(timeCol); timeCol != "" && ok {
		keys := make([]SeedTime, part.Len())
		for i := range part.Rows {
			keys[i] = ParseSeedTime(part.Get(i, timeCol))
			_ = part.Set(i, timeCol, keys[i].String())
		}
		order := make([]int, part.Len())
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return keys[order[a]].Less(keys[order[b]]) })
		part = part.Select(order)
	}

	drop := []string{EventColumn}
	for _, col := range TimeColumns() {
		if col != timeCol {
			drop = append(drop, col)
		}
	}
	part.DropColumns(drop...)

	return EventSheet{
		Name:    c.SheetName,
		Columns: slices.Clone(part.Columns),
		Rows:    part.Rows,
	}
}
