// Package watcher reports changes to configuration documents on disk.
//
// Each document's parent directory is watched rather than the file itself,
// so editors that save by writing a temporary file and renaming it over
// the original are still seen. Bursts of events are coalesced: a handler
// runs once per changed file after the directory has been quiet for the
// debounce delay.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/territorium/servertools/internal/logging"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

// Common errors for watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
	ErrIsDirectory     = errors.New("path is a directory")
)

// Op is a set of file operations.
type Op uint32

const (
	// OpCreate indicates the file was created or renamed into place.
	OpCreate Op = 1 << iota
	// OpWrite indicates the file was written to.
	OpWrite
	// OpRemove indicates the file was removed.
	OpRemove
	// OpRename indicates the file was renamed away.
	OpRename
)

// Has reports whether o contains every operation in other.
func (o Op) Has(other Op) bool { return o&other == other }

// String returns the operations joined with "|".
func (o Op) String() string {
	var parts []string
	for _, n := range []struct {
		op   Op
		name string
	}{{OpCreate, "CREATE"}, {OpWrite, "WRITE"}, {OpRemove, "REMOVE"}, {OpRename, "RENAME"}} {
		if o.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is a coalesced change to one watched file.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives events from Run.
type Handler func(Event)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Values <= 0 report every event
// immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches configuration files for changes.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	files  map[string]bool
	dirs   map[string]int
	delay  time.Duration
	logger *logging.Logger

	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
	closeErr  error
	running   sync.WaitGroup
}

// New creates a watcher. Call Close to release its resources.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		files:   make(map[string]bool),
		dirs:    make(map[string]int),
		delay:   DefaultDebounce,
		logger:  logging.Null(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add starts watching the file at path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if info.IsDir() {
		return ErrIsDirectory
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[abs] {
		return ErrAlreadyWatching
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	w.logger.Debug("watching %s", abs)
	return nil
}

// Remove stops watching the file at path.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.files[abs] {
		return ErrNotWatching
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.fsw.Remove(dir)
	}
	return nil
}

// Paths returns the watched files, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (w *Watcher) watching(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path]
}

// Run delivers events to handler until ctx is done or the watcher is
// closed. It returns ctx.Err() on cancellation and nil after Close.
// Handlers run on the Run goroutine and must not call Close.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.running.Add(1)
	w.mu.Unlock()
	defer w.running.Done()

	pending := make(map[string]Op)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		now := time.Now()
		for _, p := range paths {
			ev := Event{Path: p, Op: pending[p], Time: now}
			delete(pending, p)
			w.logger.Debug("%s %s", ev.Op, ev.Path)
			handler(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.closeCh:
			return nil

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			op := convertOp(fsEvent.Op)
			if op == 0 || !w.watching(filepath.Clean(fsEvent.Name)) {
				continue
			}
			pending[filepath.Clean(fsEvent.Name)] |= op
			if w.delay <= 0 {
				flush()
				continue
			}
			timer.Reset(w.delay)

		case <-timer.C:
			flush()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

// Close stops Run and releases the underlying watcher. Safe to call more
// than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.closeCh)
		w.mu.Unlock()

		w.running.Wait()
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

// convertOp converts fsnotify.Op to watcher.Op. Chmod is dropped.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
