package domain_test

import (
	"testing"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/stretchr/testify/require"
)

// entry is one roster row in test-friendly form.
type entry struct {
	id, event, grade         string
	pr400, pr800, prMile     string
	pr3200                   string
	alt800, altMile, alt3200 string
}

var rosterHeader = []string{
	"Registration ID", "First Name", "Last Name", domain.EventColumn, domain.GradeField,
	domain.PR400Field, domain.PR800Field, domain.PRMileField, domain.PR3200Field,
	domain.Altitude800Field, domain.AltitudeMileField, domain.Altitude3200Field,
}

func newRoster(t *testing.T, entries ...entry) *domain.Table {
	t.Helper()
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.id, "First" + e.id, "Last" + e.id, e.event, e.grade,
			e.pr400, e.pr800, e.prMile, e.pr3200,
			e.alt800, e.altMile, e.alt3200,
		}
	}
	tbl, err := domain.NewTable(rosterHeader, rows)
	require.NoError(t, err)
	require.NoError(t, domain.PrepareRoster(tbl, domain.DefaultDropColumns))
	return tbl
}

const (
	boys800   = "RunningLane Track Championships 800m Run (Boys)"
	girlsMile = "RunningLane Track Championships Mile Run (Girls)"
	boys3200  = "RunningLane Track Championships 3200m Run (Boys)"
	girls400  = "RunningLane Track Championships 400m Run (Girls)"
	open800   = "800m OPEN/YOUTH"
	girlsSC   = "RunningLane Track Championships 2000M Steeplechase Run (Girls)"
)
