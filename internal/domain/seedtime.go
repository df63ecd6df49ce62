package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SeedTime is a seed time read as a clock value (hh:mm:ss). The zero value
// is the unparseable sentinel, which sorts after every valid time.
type SeedTime struct {
	d     time.Duration
	valid bool
}

// ParseSeedTime reads an "h:mm:ss" clock value. Hours run 0-23, minutes and
// seconds 0-59, each one or two digits. Anything else is unparseable.
func ParseSeedTime(s string) SeedTime {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return SeedTime{}
	}
	limits := [3]int{23, 59, 59}
	var v [3]int
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return SeedTime{}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return SeedTime{}
		}
		v[i] = n
	}
	d := time.Duration(v[0])*time.Hour + time.Duration(v[1])*time.Minute + time.Duration(v[2])*time.Second
	return SeedTime{d: d, valid: true}
}

// Valid reports whether the time parsed.
func (s SeedTime) Valid() bool { return s.valid }

// Duration returns the parsed value; zero for the sentinel.
func (s SeedTime) Duration() time.Duration { return s.d }

// Less orders valid times ascending, with the sentinel last.
func (s SeedTime) Less(o SeedTime) bool {
	if s.valid != o.valid {
		return s.valid
	}
	return s.d < o.d
}

// String renders hh:mm:ss, or "" for the sentinel.
func (s SeedTime) String() string {
	if !s.valid {
		return ""
	}
	total := int(s.d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
