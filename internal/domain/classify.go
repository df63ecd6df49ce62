package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AltitudeThreshold is the lowest elevation, in feet, that triggers a conversion.
const AltitudeThreshold = 3000

// ErrUnknownCategory is returned when an event label carries no known marker.
var ErrUnknownCategory = errors.New("unknown event category")

// Classify resolves an event label to its discipline by substring match,
// honoring the precedence of Disciplines.
func Classify(label string) (Discipline, error) {
	for _, d := range Disciplines {
		if strings.Contains(label, d.Marker) {
			return d, nil
		}
	}
	return Discipline{}, fmt.Errorf("%w: %q", ErrUnknownCategory, label)
}

// CategoryByLabel returns the division whose long-form label matches exactly.
func CategoryByLabel(label string) (EventCategory, bool) {
	for _, c := range Categories {
		if c.Label == label {
			return c, true
		}
	}
	return EventCategory{}, false
}

// ParseElevation reads an altitude cell. Anything that is not a finite,
// non-negative number yields 0. Decimal values are truncated, matching how
// numeric spreadsheet columns come through ("4500.0").
func ParseElevation(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// Eligible reports whether row needs an altitude conversion for discipline d,
// returning the parsed elevation.
func Eligible(t *Table, row int, d Discipline) (int, bool) {
	if d.AltitudeField == "" {
		return 0, false
	}
	elevation := ParseElevation(t.Get(row, d.AltitudeField))
	return elevation, elevation != 0 && elevation >= AltitudeThreshold
}
