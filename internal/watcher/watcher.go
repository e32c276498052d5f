package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docrun/internal/logfields"
)

// DefaultDebounce is the quiet period after the last event before a run starts.
const DefaultDebounce = 300 * time.Millisecond

// ErrNoPaths is returned when a watcher is started without files to watch.
var ErrNoPaths = errors.New("watcher: no paths to watch")

// RunFunc is invoked once at start and again after every debounced change.
// Errors are logged and never stop the watcher.
type RunFunc func(ctx context.Context) error

// Watcher triggers RunFunc on file changes.
type Watcher struct {
	paths    map[string]struct{}
	dirs     []string
	run      RunFunc
	debounce time.Duration
}

// New creates a watcher for the given files. Paths are made absolute.
func New(paths []string, run RunFunc) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	w := &Watcher{
		paths:    make(map[string]struct{}, len(paths)),
		run:      run,
		debounce: DefaultDebounce,
	}
	seenDirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.paths[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seenDirs[dir]; !ok {
			seenDirs[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// WithDebounce overrides the debounce interval.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Run performs an initial run, then re-runs on changes until ctx is done.
// It returns nil on cancellation and an error only if watching cannot start.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	runReq, trigger, stop := w.setupDebouncer()
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runWorker(ctx, runReq)
	}()

	// initial run
	runReq <- struct{}{}

	slog.Info("Watching for changes", slog.Any("paths", w.sortedPaths()))
	w.loop(ctx, fsw, trigger)
	wg.Wait()
	return nil
}

// setupDebouncer returns the run request channel, a trigger that schedules a
// request after the debounce interval, and a stop function for the timer.
func (w *Watcher) setupDebouncer() (chan struct{}, func(), func()) {
	var mu sync.Mutex
	var timer *time.Timer
	runReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case runReq <- struct{}{}:
			default:
			}
		})
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return runReq, trigger, stop
}

func (w *Watcher) runWorker(ctx context.Context, runReq <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-runReq:
			if ctx.Err() != nil {
				return
			}
			if err := w.run(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("Run failed; waiting for changes", logfields.Error(err))
			}
		}
	}
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, trigger func()) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watcher")
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				trigger()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// relevant reports whether ev touches one of the watched files with a content change.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	_, ok := w.paths[filepath.Clean(ev.Name)]
	return ok
}

func (w *Watcher) sortedPaths() []string {
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
