package domain

import (
	"context"
	"strings"
)

// ConversionRequest is one altitude-to-sea-level conversion.
type ConversionRequest struct {
	Elevation      int    // feet
	DistanceFactor string // miles, fixed-point decimal text
	InputTime      string // seed time as entered
}

// ConversionResult is a converted seed time addressed to a table cell.
type ConversionResult struct {
	Index         int
	Field         string
	ConvertedTime string
}

// Oracle opens sessions against the external conversion calculator.
type Oracle interface {
	Open(ctx context.Context) (OracleSession, error)
}

// OracleSession is a stateful calculator session owned by a single worker.
// Convert resets every input field before writing the new request, so a
// session can be reused for any number of sequential calls. A session must
// not be used after Close.
type OracleSession interface {
	Convert(ctx context.Context, req ConversionRequest) (string, error)
	Close(ctx context.Context) error
}

// outputSuffixLen is the length of the unit suffix ("min") the calculator
// appends to its output.
const outputSuffixLen = 3

// NormalizeOracleOutput compacts calculator output into a seed time: all
// whitespace removed, the unit suffix trimmed, upper-cased.
func NormalizeOracleOutput(text string) string {
	compact := strings.Join(strings.Fields(text), "")
	if len(compact) <= outputSuffixLen {
		return ""
	}
	return strings.ToUpper(compact[:len(compact)-outputSuffixLen])
}
