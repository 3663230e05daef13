// Package session is an editing session over one server configuration:
// the aggregates, their undo history and an optional running server that
// web module changes are pushed to.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/territorium/servertools/internal/command"
	"github.com/territorium/servertools/internal/history"
	"github.com/territorium/servertools/internal/loader"
	"github.com/territorium/servertools/internal/logging"
	"github.com/territorium/servertools/internal/model"
	"github.com/territorium/servertools/internal/notify"
	"github.com/territorium/servertools/internal/store"
)

// DefaultChangeBuffer is the capacity of the Changes channel.
const DefaultChangeBuffer = 64

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistoryOptions passes options to the session's history.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(s *Session) { s.historyOpts = append(s.historyOpts, opts...) }
}

// WithModuleTarget pushes web module additions and removals to a running
// server. Failures there are logged and never block the edit.
func WithModuleTarget(t command.ModuleTarget) Option {
	return func(s *Session) { s.target = t }
}

// Session edits a Configuration and ServerWrapper through a History.
// It is not safe for concurrent edits.
type Session struct {
	cfg  *model.Configuration
	w    *model.ServerWrapper
	hist *history.History

	target      command.ModuleTarget
	logger      *logging.Logger
	historyOpts []history.Option

	mu      sync.Mutex
	closed  bool
	changes chan notify.Change
	subs    []*notify.Subscription
}

// New starts a session over cfg and w.
func New(cfg *model.Configuration, w *model.ServerWrapper, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		w:       w,
		logger:  logging.Null(),
		changes: make(chan notify.Change, DefaultChangeBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hist = history.New(append([]history.Option{history.WithLogger(s.logger)}, s.historyOpts...)...)
	s.subs = []*notify.Subscription{
		cfg.Notifier().Subscribe(s.forward),
		w.Notifier().Subscribe(s.forward),
	}
	return s
}

// Open loads the document at path and starts a session over it.
func Open(l *loader.Loader, path string, opts ...Option) (*Session, error) {
	cfg, w, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, w, opts...), nil
}

// FromSnapshot starts a session over a stored snapshot.
func FromSnapshot(snap store.Snapshot, opts ...Option) (*Session, error) {
	doc, err := loader.Decode(snap.Format, snap.Data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", snap.ID, err)
	}
	cfg, w, err := doc.Build()
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", snap.ID, err)
	}
	return New(cfg, w, opts...), nil
}

func (s *Session) forward(c notify.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.changes <- c:
	default:
		s.logger.Debug("change channel full, dropped %s %s", c.Type, c.Path)
	}
}

// Config returns the configuration aggregate.
func (s *Session) Config() *model.Configuration { return s.cfg }

// Server returns the server settings aggregate.
func (s *Session) Server() *model.ServerWrapper { return s.w }

// History returns the undo history.
func (s *Session) History() *history.History { return s.hist }

// Changes delivers every published change. Changes are dropped when the
// channel is full. The channel is closed by Close.
func (s *Session) Changes() <-chan notify.Change { return s.changes }

// Execute runs cmd through the history.
func (s *Session) Execute(cmd command.Command) error {
	if err := s.hist.Execute(cmd); err != nil {
		return err
	}
	s.logger.Info("%s", cmd.Label())
	return nil
}

// Undo reverts the last edit.
func (s *Session) Undo() error { return s.hist.Undo() }

// Redo reapplies the last undone edit.
func (s *Session) Redo() error { return s.hist.Redo() }

// Dirty reports whether there are edits since the last save.
func (s *Session) Dirty() bool { return s.hist.IsDirty() }

// MarkSaved records the current state as saved.
func (s *Session) MarkSaved() { s.hist.MarkSaved() }

// Document returns the persisted form of the current state.
func (s *Session) Document() loader.Document {
	return loader.DocumentOf(s.cfg, s.w)
}

// Save writes the current state to path and marks it saved.
func (s *Session) Save(l *loader.Loader, path string) error {
	if err := l.Save(path, s.cfg, s.w); err != nil {
		return err
	}
	s.MarkSaved()
	return nil
}

// Snapshot stores the current state under name in format.
func (s *Session) Snapshot(ctx context.Context, st *store.Store, name, format string) (store.Snapshot, error) {
	data, err := loader.Encode(format, s.Document())
	if err != nil {
		return store.Snapshot{}, err
	}
	snap, err := st.Save(ctx, name, format, data)
	if err != nil {
		return store.Snapshot{}, err
	}
	s.logger.WithField("id", snap.ID).Info("snapshot %s saved", name)
	return snap, nil
}

// Close stops change delivery and closes the Changes channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.changes)
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
