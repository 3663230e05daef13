package history

import (
	"errors"
	"sync"
	"time"

	"github.com/territorium/servertools/internal/command"
	"github.com/territorium/servertools/internal/logging"
)

// DefaultMaxEntries is the undo depth used when none is configured.
const DefaultMaxEntries = 1000

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Observer is told about every command step the history runs.
type Observer interface {
	ObserveStep(op command.Op, kind command.Kind, d time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(op command.Op, kind command.Kind, d time.Duration, err error)

// ObserveStep implements Observer.
func (f ObserverFunc) ObserveStep(op command.Op, kind command.Kind, d time.Duration, err error) {
	f(op, kind, d, err)
}

// Info describes a history entry.
type Info struct {
	Label     string
	Kind      command.Kind
	Timestamp time.Time
}

type entry struct {
	cmd       command.Command
	timestamp time.Time
}

func (e *entry) info() Info {
	return Info{Label: e.cmd.Label(), Kind: e.cmd.Kind(), Timestamp: e.timestamp}
}

// Option configures a History.
type Option func(*History)

// WithMaxEntries bounds the undo stack. Values <= 0 select DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.maxEntries = n
		}
	}
}

// WithObserver adds an observer of command steps.
func WithObserver(o Observer) Option {
	return func(h *History) {
		if o != nil {
			h.observers = append(h.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *History) {
		if l != nil {
			h.logger = l
		}
	}
}

// History manages the undo and redo stacks.
type History struct {
	mu sync.Mutex

	undoStack []*entry
	redoStack []*entry

	// Grouping state. groupMarks holds len(groupCmds) at each open
	// BeginGroup, outermost first.
	groupMarks []int
	groupName  string
	groupCmds  []command.Command

	// saved is the top of the undo stack at the last save point, nil for
	// an empty stack.
	saved  *entry
	forced bool

	maxEntries int
	observers  []Observer
	logger     *logging.Logger
}

// New creates a history.
func New(opts ...Option) *History {
	h := &History{
		maxEntries: DefaultMaxEntries,
		logger:     logging.Null(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute runs cmd and records it. While a group is open the command joins
// the group instead.
func (h *History) Execute(cmd command.Command) error {
	if err := h.step(command.OpExecute, cmd, cmd.Execute); err != nil {
		return err
	}
	h.Push(cmd)
	return nil
}

// Push records a command that has already been executed.
// Clears the redo stack.
func (h *History) Push(cmd command.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.groupMarks) > 0 {
		h.groupCmds = append(h.groupCmds, cmd)
		return
	}
	h.pushLocked(cmd)
}

func (h *History) pushLocked(cmd command.Command) {
	h.undoStack = append(h.undoStack, &entry{cmd: cmd, timestamp: time.Now()})
	h.redoStack = nil
	h.trimLocked()
}

// trimLocked drops the oldest entries beyond maxEntries. The saved state
// becomes unreachable when it is dropped.
func (h *History) trimLocked() {
	excess := len(h.undoStack) - h.maxEntries
	if excess <= 0 {
		return
	}
	if h.saved == nil {
		h.forced = true
	}
	for _, e := range h.undoStack[:excess] {
		if e == h.saved {
			h.forced = true
		}
	}
	h.undoStack = h.undoStack[excess:]
}

// Undo reverses the most recent entry. A failed undo leaves the entry on
// the undo stack.
// The lock is not held while the command runs.
func (h *History) Undo() error {
	h.mu.Lock()
	if len(h.undoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}
	e := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.mu.Unlock()

	if err := h.step(command.OpUndo, e.cmd, e.cmd.Undo); err != nil {
		h.mu.Lock()
		h.undoStack = append(h.undoStack, e)
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.redoStack = append(h.redoStack, e)
	h.mu.Unlock()
	return nil
}

// Redo reapplies the most recently undone entry. A failed redo leaves the
// entry on the redo stack.
func (h *History) Redo() error {
	h.mu.Lock()
	if len(h.redoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToRedo
	}
	e := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.mu.Unlock()

	if err := h.step(command.OpRedo, e.cmd, e.cmd.Redo); err != nil {
		h.mu.Lock()
		h.redoStack = append(h.redoStack, e)
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.undoStack = append(h.undoStack, e)
	h.mu.Unlock()
	return nil
}

func (h *History) step(op command.Op, cmd command.Command, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	if err != nil {
		h.logger.WithField("kind", cmd.Kind().String()).Debug("%s %q failed: %v", op, cmd.Label(), err)
	} else {
		h.logger.Debug("%s %q", op, cmd.Label())
	}

	h.mu.Lock()
	observers := h.observers
	h.mu.Unlock()
	for _, o := range observers {
		o.ObserveStep(op, cmd.Kind(), d, err)
	}
	return err
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}

// UndoCount returns the number of undo entries.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}

// RedoCount returns the number of redo entries.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack)
}

// Clear drops both stacks. A history that was dirty stays dirty until the
// next MarkSaved.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.forced = h.dirtyLocked()
	h.undoStack = nil
	h.redoStack = nil
	h.saved = nil
	h.groupMarks = nil
	h.groupCmds = nil
}

// UndoInfo describes the undo stack, oldest first.
func (h *History) UndoInfo() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return infos(h.undoStack)
}

// RedoInfo describes the redo stack, oldest first.
func (h *History) RedoInfo() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return infos(h.redoStack)
}

func infos(stack []*entry) []Info {
	out := make([]Info, len(stack))
	for i, e := range stack {
		out[i] = e.info()
	}
	return out
}

// PeekUndo describes the next undo without performing it.
func (h *History) PeekUndo() (Info, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undoStack) == 0 {
		return Info{}, false
	}
	return h.undoStack[len(h.undoStack)-1].info(), true
}

// PeekRedo describes the next redo without performing it.
func (h *History) PeekRedo() (Info, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redoStack) == 0 {
		return Info{}, false
	}
	return h.redoStack[len(h.redoStack)-1].info(), true
}

// SetMaxEntries changes the undo depth, dropping the oldest entries if
// needed.
func (h *History) SetMaxEntries(n int) {
	if n <= 0 {
		n = DefaultMaxEntries
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxEntries = n
	h.trimLocked()
}

// MaxEntries returns the undo depth.
func (h *History) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxEntries
}

// MarkSaved records the current position as the saved state.
func (h *History) MarkSaved() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = h.topLocked()
	h.forced = false
}

// IsDirty reports whether the history has moved since MarkSaved. A new
// history is clean.
func (h *History) IsDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirtyLocked()
}

func (h *History) dirtyLocked() bool {
	return h.forced || h.topLocked() != h.saved || len(h.groupCmds) > 0
}

func (h *History) topLocked() *entry {
	if len(h.undoStack) == 0 {
		return nil
	}
	return h.undoStack[len(h.undoStack)-1]
}
