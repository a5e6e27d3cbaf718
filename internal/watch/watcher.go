// SPDX-License-Identifier: MPL-2.0

// Package watch reloads configuration when its layer files change.
//
// It monitors the directories holding a fixed set of files and invokes a
// callback after a debounce period. Events within the debounce window are
// coalesced so the callback fires once with every file that changed.
// Directories are watched rather than files because editors and Save replace
// files by rename, which drops a watch placed on the file itself.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay before firing the onChange callback after the
// last filesystem event.
const defaultDebounce = 500 * time.Millisecond

var (
	// ErrNoFiles is returned when a Config names no files.
	ErrNoFiles = errors.New("watch: no files to watch")
	// ErrRelativePath is returned for a file that is not an absolute path.
	ErrRelativePath = errors.New("watch: path is not absolute")
	// ErrNoDirectories is returned when none of the files' directories exist.
	ErrNoDirectories = errors.New("watch: no watchable directories")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Files are absolute paths. A file may not exist yet; its directory
		// must, or the file is not watched.
		Files []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange is called after the debounce window closes with the
		// deduplicated, sorted list of changed files. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher diagnostics. nil uses slog.Default().
		Logger *slog.Logger
	}

	// Watcher monitors files and fires a debounced callback when they change.
	// Run must be called exactly once; calling it a second time returns an
	// error.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		files    map[string]struct{}
		logger   *slog.Logger
		debounce time.Duration
		started  atomic.Bool
	}
)

// IsValid returns whether the Config can build a Watcher, and the list of
// problems if it cannot.
func (c Config) IsValid() (bool, []error) {
	if len(c.Files) == 0 {
		return false, []error{ErrNoFiles}
	}
	var errs []error
	for _, f := range c.Files {
		if !filepath.IsAbs(f) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrRelativePath, f))
		}
	}
	return len(errs) == 0, errs
}

// New creates a Watcher from the given Config and registers the directory of
// every file with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if ok, errs := cfg.IsValid(); !ok {
		return nil, errors.Join(errs...)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		files:    make(map[string]struct{}, len(cfg.Files)),
		logger:   logger,
		debounce: debounce,
	}
	for _, f := range cfg.Files {
		w.files[filepath.Clean(f)] = struct{}{}
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("watch: close after init failure", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on clean context
// cancellation and propagates any fatal watcher errors.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may be scheduled by time.AfterFunc after ctx is cancelled. A
	// callback still running when the next window closes is not re-entered;
	// the window is rescheduled instead so pending changes are not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("watch: reload still in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("watch: callback failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil {
			localTimer.Stop()
		}
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("watch: close fsnotify", "error", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			name := filepath.Clean(evt.Name)
			if _, watched := w.files[name]; !watched || evt.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("watch: event", "path", name, "op", evt.Op.String())

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			// isFatalFsnotifyError is platform-specific (see watcher_fatal_*.go).
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("watch: fsnotify error", "error", err)
		}
	}
}

// Files returns the watched files in sorted order.
func (w *Watcher) Files() []string {
	return slices.Sorted(maps.Keys(w.files))
}

// addDirectories registers the parent directory of every file once. Missing
// directories are skipped with a warning; at least one must be watchable.
func (w *Watcher) addDirectories() error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}

	added := 0
	for _, dir := range slices.Sorted(maps.Keys(dirs)) {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			w.logger.Warn("watch: skipping missing directory", "dir", dir)
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
		added++
	}
	if added == 0 {
		return ErrNoDirectories
	}
	return nil
}
