// Command genroster writes a synthetic registration export with the survey
// headers, for local runs against a fake or live conversion oracle.
//
// Usage:
//
//	go run ./cmd/genroster -n 200 -seed 7 -dir data/
//	go run ./cmd/genroster -out roster.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/seedtime-etl/internal/domain"
)

var header = []string{
	"Registration ID", "First Name", "Middle Name", "Last Name",
	"Street Address", "City", "Country", "Zip Code",
	domain.EventColumn, domain.GradeField,
	domain.PR400Field, domain.PR800Field, domain.PRMileField, domain.PR3200Field,
	domain.Altitude800Field, domain.AltitudeMileField, domain.Altitude3200Field,
}

var (
	firstNames = []string{"Ava", "Ben", "Cora", "Dev", "Elle", "Finn", "Gia", "Hugo", "Iris", "Jude", "Kai", "Lena"}
	lastNames  = []string{"Alvarez", "Brooks", "Chen", "Dalton", "Eze", "Fischer", "Grant", "Haas", "Ito", "Jensen"}
	towns      = []struct {
		city      string
		elevation string
	}{
		{"Denver", "5280"},
		{"Flagstaff", "6910"},
		{"Boulder", "5,328"},
		{"Albuquerque", "4500.0"},
		{"Omaha", ""},
		{"Chicago", "sea level"},
		{"Laramie", "7165"},
	}
)

// timeRange is the window of plausible seed times for a discipline, in seconds.
var timeRange = map[string][2]int{
	domain.PR400Field:  {52, 95},
	domain.PR800Field:  {118, 210},
	domain.PRMileField: {265, 480},
	domain.PR3200Field: {570, 1020},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	n := flag.Int("n", 60, "number of registrations")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "", "output file; overrides -dir")
	dir := flag.String("dir", ".", "write today's dated export into this directory")
	suffix := flag.String("suffix", domain.DefaultInputSuffix, "dated export file suffix")
	flag.Parse()

	if *n < 0 {
		return fmt.Errorf("-n must be non-negative")
	}

	path := *out
	if path == "" {
		path = domain.DatedInputPath(*dir, *suffix)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x5eed))
	rows := make([][]string, 0, *n)
	for i := range *n {
		rows = append(rows, registration(rng, i+1))
	}

	t, err := domain.NewTable(header, rows)
	if err != nil {
		return err
	}
	if err := write(path, t); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %d registrations to %s", t.Len(), path)
	printStats(t)
	return nil
}

func registration(rng *rand.Rand, id int) []string {
	row := make([]string, len(header))
	set := func(col, v string) {
		for i, h := range header {
			if h == col {
				row[i] = v
				return
			}
		}
	}

	c := domain.Categories[rng.IntN(len(domain.Categories))]
	town := towns[rng.IntN(len(towns))]

	set("Registration ID", strconv.Itoa(id))
	set("First Name", firstNames[rng.IntN(len(firstNames))])
	set("Last Name", lastNames[rng.IntN(len(lastNames))])
	set("Street Address", strconv.Itoa(100+rng.IntN(9900))+" Main St")
	set("City", town.city)
	set("Country", "US")
	set("Zip Code", fmt.Sprintf("%05d", rng.IntN(99999)))
	set(domain.EventColumn, c.Label)
	set(domain.GradeField, strconv.Itoa(6+rng.IntN(7)))

	d := c.Discipline
	if d.PRField == "" {
		return row
	}
	// Roughly one in ten entrants leave the seed time blank.
	if rng.IntN(10) > 0 {
		window := timeRange[d.PRField]
		secs := window[0] + rng.IntN(window[1]-window[0])
		set(d.PRField, clock(time.Duration(secs)*time.Second))
	}
	if d.AltitudeField != "" {
		set(d.AltitudeField, town.elevation)
	}
	return row
}

func clock(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

func write(path string, t *domain.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvfile.Write(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(t *domain.Table) {
	counts := make(map[string]int)
	eligible := 0
	for i := range t.Rows {
		c, ok := domain.CategoryByLabel(t.Get(i, domain.EventColumn))
		if !ok {
			continue
		}
		counts[c.SheetName]++
		if _, ok := domain.Eligible(t, i, c.Discipline); ok {
			eligible++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Printf("  %-26s %d", name, counts[name])
	}
	log.Printf("altitude eligible: %d", eligible)
}
