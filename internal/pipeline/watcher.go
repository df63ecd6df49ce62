package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// Watcher triggers a run when a roster export lands in the input directory.
// Bursts of events are collapsed: the run starts once the directory has been
// quiet for the debounce interval.
type Watcher struct {
	fs       *fsnotify.Watcher
	match    func(name string) bool
	runner   Runner
	debounce time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewWatcher starts watching dir. match selects which file names trigger a run.
func NewWatcher(dir string, match func(name string) bool, runner Runner, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		fs:       fs,
		match:    match,
		runner:   runner,
		debounce: debounce,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}, nil
}

// MatchInput returns a matcher that accepts a file whose base name equals
// the base of resolve(). resolve is called per event, so a dated input path
// follows the calendar.
func MatchInput(resolve func() string) func(string) bool {
	return func(name string) bool { return filepath.Base(name) == filepath.Base(resolve()) }
}

// Run blocks until ctx is cancelled, running the pipeline after matching
// create or write events. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.match(ev.Name) {
				continue
			}
			w.logger.Debug("input changed", "file", ev.Name, "op", ev.Op.String())
			pending = w.clock.After(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-pending:
			pending = nil
			_, _ = w.runner.Run(ctx)
		}
	}
}
