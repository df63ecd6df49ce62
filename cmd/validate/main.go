// Command validate checks a published workbook against the normalized roster
// it was assembled from: sheet order, row accounting, seed-time ordering,
// dropped columns, adjustment markers, and a digest comparison against a
// fresh assembly.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -workbook seedtime-workbook.db \
//	  -normalized data/20240307-RunningLaneTrackChampionships-participants-normalized.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/couchcryptid/seedtime-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/seedtime-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/seedtime-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	workbookPath := flag.String("workbook", "", "path to the SQLite workbook")
	normalizedPath := flag.String("normalized", "", "path to the normalized roster CSV")
	flag.Parse()

	if *workbookPath == "" || *normalizedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*workbookPath, *normalizedPath))
}

func run(workbookPath, normalizedPath string) int {
	ctx := context.Background()

	fmt.Println("=== Seed Time Workbook Validation ===")
	fmt.Println()

	roster, err := csvfile.NewStore().Load(ctx, normalizedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	wb, err := sqlite.Open(workbookPath, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer wb.Close()

	sheets, err := wb.Sheets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := validate(roster, sheets)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d normalized rows, %d sheets, %d sheet rows\n",
		roster.Len(), len(sheets), countRows(sheets))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validate(roster *domain.Table, sheets []domain.EventSheet) []*phase {
	return []*phase{
		validateSheetOrder(sheets),
		validateRowAccounting(roster, sheets),
		validateSortOrder(sheets),
		validateDroppedColumns(sheets),
		validateMarkers(roster),
		validateReassembly(roster, sheets),
	}
}

// ── Phases ──

func validateSheetOrder(sheets []domain.EventSheet) *phase {
	p := &phase{name: "Phase 1: Sheet order"}
	if len(sheets) != len(domain.Categories) {
		p.errorf("workbook has %d sheets, want %d", len(sheets), len(domain.Categories))
	}
	for i, c := range domain.Categories {
		if i >= len(sheets) {
			p.errorf("missing sheet %q at position %d", c.SheetName, i)
			continue
		}
		if sheets[i].Name != c.SheetName {
			p.errorf("position %d: sheet %q, want %q", i, sheets[i].Name, c.SheetName)
		}
	}
	return p
}

func validateRowAccounting(roster *domain.Table, sheets []domain.EventSheet) *phase {
	p := &phase{name: "Phase 2: Row accounting"}

	want := make(map[string]int)
	for i := range roster.Rows {
		if c, ok := domain.CategoryByLabel(roster.Get(i, domain.EventColumn)); ok {
			want[c.SheetName]++
		}
	}
	for _, s := range sheets {
		if got := len(s.Rows); got != want[s.Name] {
			p.errorf("%s: %d rows, roster has %d entrants", s.Name, got, want[s.Name])
		}
	}
	return p
}

func validateSortOrder(sheets []domain.EventSheet) *phase {
	p := &phase{name: "Phase 3: Seed time ordering"}
	for _, s := range sheets {
		col := slices.Index(s.Columns, timeColumn(s.Name))
		if col < 0 {
			continue
		}
		for i := 1; i < len(s.Rows); i++ {
			prev := domain.ParseSeedTime(s.Rows[i-1][col])
			cur := domain.ParseSeedTime(s.Rows[i][col])
			if cur.Less(prev) {
				p.errorf("%s row %d: %q sorts before %q", s.Name, i, s.Rows[i][col], s.Rows[i-1][col])
			}
		}
	}
	return p
}

func validateDroppedColumns(sheets []domain.EventSheet) *phase {
	p := &phase{name: "Phase 4: Dropped columns"}
	for _, s := range sheets {
		forbidden := []string{domain.EventColumn}
		forbidden = append(forbidden, domain.AltitudeFields()...)
		forbidden = append(forbidden, domain.DefaultDropColumns...)
		for _, tc := range domain.TimeColumns() {
			if tc != timeColumn(s.Name) {
				forbidden = append(forbidden, tc)
			}
		}
		for _, col := range forbidden {
			if slices.Contains(s.Columns, col) {
				p.errorf("%s: unexpected column %q", s.Name, col)
			}
		}
		if !slices.Contains(s.Columns, domain.MarkerColumn) {
			p.errorf("%s: missing %q column", s.Name, domain.MarkerColumn)
		}
	}
	return p
}

// validateMarkers checks the normalized roster: a row is marked exactly when
// its division is known and its altitude qualifies for conversion.
func validateMarkers(roster *domain.Table) *phase {
	p := &phase{name: "Phase 5: Adjustment markers"}
	if _, ok := roster.Col(domain.MarkerColumn); !ok {
		p.errorf("normalized roster has no %q column", domain.MarkerColumn)
		return p
	}
	for i := range roster.Rows {
		marked := roster.Get(i, domain.MarkerColumn) == domain.MarkerValue
		if !marked {
			continue
		}
		c, ok := domain.CategoryByLabel(roster.Get(i, domain.EventColumn))
		if !ok {
			p.errorf("row %d: marked but event %q is unknown", i+2, roster.Get(i, domain.EventColumn))
			continue
		}
		if _, eligible := domain.Eligible(roster, i, c.Discipline); !eligible {
			p.errorf("row %d: marked but altitude does not qualify", i+2)
		}
	}
	return p
}

func validateReassembly(roster *domain.Table, sheets []domain.EventSheet) *phase {
	p := &phase{name: "Phase 6: Reassembly digest"}
	fresh, err := domain.Assemble(roster)
	if err != nil {
		p.errorf("assemble normalized roster: %v", err)
		return p
	}
	stored := make(map[string]string, len(sheets))
	for _, s := range sheets {
		stored[s.Name] = s.Digest()
	}
	for _, s := range fresh {
		if got, ok := stored[s.Name]; ok && got != s.Digest() {
			p.errorf("%s: workbook digest %s, assembled %s", s.Name, got, s.Digest())
		}
	}
	return p
}

// ── Helpers ──

func timeColumn(sheet string) string {
	for _, c := range domain.Categories {
		if c.SheetName == sheet {
			return c.Discipline.TimeColumn
		}
	}
	return ""
}

func countRows(sheets []domain.EventSheet) int {
	n := 0
	for _, s := range sheets {
		n += len(s.Rows)
	}
	return n
}
