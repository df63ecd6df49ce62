package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
	"github.com/stretchr/testify/require"
)

const (
	boys800   = "RunningLane Track Championships 800m Run (Boys)"
	girlsMile = "RunningLane Track Championships Mile Run (Girls)"
	boys3200  = "RunningLane Track Championships 3200m Run (Boys)"
	girls400  = "RunningLane Track Championships 400m Run (Girls)"
	girlsSC   = "RunningLane Track Championships 2000M Steeplechase Run (Girls)"
)

var rosterHeader = []string{
	"Registration ID", "First Name", "Last Name", "Middle Name", domain.EventColumn, domain.GradeField,
	domain.PR400Field, domain.PR800Field, domain.PRMileField, domain.PR3200Field,
	domain.Altitude800Field, domain.AltitudeMileField, domain.Altitude3200Field,
}

// athlete is one roster row: its seed time and elevation land in the columns
// of whichever discipline the event belongs to.
type athlete struct {
	id, event, pr, altitude string
}

func rosterRows(athletes ...athlete) [][]string {
	rows := make([][]string, len(athletes))
	for i, a := range athletes {
		cells := map[string]string{
			"Registration ID":  a.id,
			"First Name":       "First" + a.id,
			"Last Name":        "Last" + a.id,
			"Middle Name":      "M",
			domain.EventColumn: a.event,
		}
		if d, err := domain.Classify(a.event); err == nil {
			if d.PRField != "" {
				cells[d.PRField] = a.pr
			}
			if d.AltitudeField != "" {
				cells[d.AltitudeField] = a.altitude
			}
		}
		row := make([]string, len(rosterHeader))
		for j, col := range rosterHeader {
			row[j] = cells[col]
		}
		rows[i] = row
	}
	return rows
}

func newRawRoster(t *testing.T, athletes ...athlete) *domain.Table {
	t.Helper()
	tbl, err := domain.NewTable(rosterHeader, rosterRows(athletes...))
	require.NoError(t, err)
	return tbl
}

func newRoster(t *testing.T, athletes ...athlete) *domain.Table {
	t.Helper()
	tbl := newRawRoster(t, athletes...)
	require.NoError(t, domain.PrepareRoster(tbl, domain.DefaultDropColumns))
	return tbl
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

// --- fake oracle ---

// fakeOracle converts by prefixing "adj-" to the input time, or returns result
// when set. It records which inputs each session saw, in call order.
type fakeOracle struct {
	mu       sync.Mutex
	sessions []*fakeSession
	result   string
	openErr  error
	failOn   map[string]bool
	block    chan struct{}
}

func (o *fakeOracle) Open(_ context.Context) (domain.OracleSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	s := &fakeSession{oracle: o}
	o.sessions = append(o.sessions, s)
	return s, nil
}

func (o *fakeOracle) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

type fakeSession struct {
	oracle *fakeOracle
	inputs []string
	closed bool
}

func (s *fakeSession) Convert(ctx context.Context, req domain.ConversionRequest) (string, error) {
	if s.closed {
		return "", errors.New("session closed")
	}
	if s.oracle.block != nil {
		select {
		case <-s.oracle.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.inputs = append(s.inputs, req.InputTime)
	if s.oracle.failOn[req.InputTime] {
		return "", fmt.Errorf("calculator timeout for %s", req.InputTime)
	}
	if s.oracle.result != "" {
		return s.oracle.result, nil
	}
	return "adj-" + req.InputTime, nil
}

func (s *fakeSession) Close(_ context.Context) error {
	s.closed = true
	return nil
}

// --- in-memory roster store ---

type memRoster struct {
	mu      sync.Mutex
	tables  map[string]*domain.Table
	saved   map[string]*domain.Table
	loadErr error
	saveErr error
}

func newMemRoster() *memRoster {
	return &memRoster{tables: make(map[string]*domain.Table), saved: make(map[string]*domain.Table)}
}

func (m *memRoster) Load(_ context.Context, path string) (*domain.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	t, ok := m.tables[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return t.Clone(), nil
}

func (m *memRoster) Save(_ context.Context, path string, t *domain.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[path] = t.Clone()
	return nil
}

// --- recording sink ---

type recordingSink struct {
	mu     sync.Mutex
	sheets map[string][][]string
	order  []string
	err    error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sheets: make(map[string][][]string)}
}

func (r *recordingSink) Publish(_ context.Context, sheet string, rows [][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sheets[sheet] = rows
	r.order = append(r.order, sheet)
	return nil
}

func sortedKeys(m map[string]*domain.Table) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
