// Package domain models the track championship roster and the rules for
// normalizing altitude seed times.
//
// # Data Source
//
// The roster is the participant CSV exported from the registration site, one
// row per entry. Headers are the survey questions verbatim, e.g.
//
//	"What is your personal best for the 800m?  Please give honest ..."
//
// and are treated as opaque keys. Only the Event column and the seed-time and
// altitude questions are interpreted; every other column passes through.
//
// # Classification
//
// Event labels are long-form division names such as
//
//	"RunningLane Track Championships 800m Run (Boys)"
//	"Mile OPEN/YOUTH"
//
// A label is classified by substring: the first discipline marker found in the
// order 800m, Mile, 3200m, 400m, Steeplechase wins. The order is part of the
// output contract and must not be sorted.
//
// # Altitude Conversion
//
// Entrants report the elevation (feet) where their personal best was run.
// Blank or non-numeric answers count as sea level. Elevations of 3000 ft or
// more are converted by the external calculator using the race distance in
// miles:
//
//	800m: 0.497097   Mile: 1   3200m: 1.988388
//
// The 400m and steeplechase questions carry no elevation and are never
// converted. Converted rows are flagged with "*" in "Altitude Adjusted*".
//
// # Seed Times
//
// Seed times are read as clock values "h:mm:ss" for sorting. Values that do
// not parse (blank, "NT", "2:05.3") are kept in the sheet with an empty time
// cell and sort after every valid time. Ties keep roster order.
package domain
