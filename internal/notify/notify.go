// Package notify delivers change notifications for server configuration
// edits.
//
// Aggregates in the model package publish a Change for every mutation.
// Editors and views subscribe either to everything or to a property path;
// a subscription on "port" receives "port.http" and "port.https".
package notify

import (
	"sync"
)

// ChangeType is the kind of mutation.
type ChangeType int

const (
	// ChangeSet indicates a scalar property was assigned.
	ChangeSet ChangeType = iota

	// ChangeAdd indicates an element was inserted into a sequence.
	ChangeAdd

	// ChangeModify indicates an element of a sequence was replaced in place.
	ChangeModify

	// ChangeRemove indicates an element was removed from a sequence.
	ChangeRemove
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeAdd:
		return "add"
	case ChangeModify:
		return "modify"
	case ChangeRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change describes one mutation.
type Change struct {
	// Path is the dot-separated property name, e.g. "webModule" or "port.http".
	Path string

	// Type is the kind of mutation.
	Type ChangeType

	// Index is the sequence position for add, modify and remove; -1 otherwise.
	Index int

	// OldValue is the prior value (nil for adds).
	OldValue any

	// NewValue is the new value (nil for removes).
	NewValue any
}

// Observer receives changes.
type Observer func(change Change)

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
		s.notifier = nil
	}
}

// Notifier fans changes out to observers synchronously, in the caller's
// goroutine. Observers are called in registration order.
type Notifier struct {
	mu sync.RWMutex

	subs   []subscriber
	nextID uint64
	muted  int
}

type subscriber struct {
	id       uint64
	path     string
	all      bool
	observer Observer
}

func (s subscriber) matches(path string) bool {
	return s.all || s.path == path || isParentPath(s.path, path)
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add(subscriber{all: true, observer: observer})
}

// SubscribePath registers an observer for a path and its children.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	return n.add(subscriber{path: path, observer: observer})
}

func (n *Notifier) add(sub subscriber) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub.id = n.nextID
	n.nextID++
	n.subs = append(n.subs, sub)
	return &Subscription{id: sub.id, notifier: n}
}

// Notify delivers a change to every matching observer.
// Observers run outside the lock and may subscribe or unsubscribe.
func (n *Notifier) Notify(change Change) {
	if n == nil {
		return
	}

	n.mu.RLock()
	if n.muted > 0 {
		n.mu.RUnlock()
		return
	}
	observers := make([]Observer, 0, len(n.subs))
	for _, sub := range n.subs {
		if sub.matches(change.Path) {
			observers = append(observers, sub.observer)
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// Mute suppresses delivery until the returned function is called.
// Used for bulk loads that should not look like user edits.
func (n *Notifier) Mute() (unmute func()) {
	n.mu.Lock()
	n.muted++
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			n.muted--
			n.mu.Unlock()
		})
	}
}

// Len returns the number of registered observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, sub := range n.subs {
		if sub.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// isParentPath reports whether parent is a dotted prefix of child;
// "port" is the parent of "port.http".
func isParentPath(parent, child string) bool {
	if parent == "" {
		return true
	}
	if len(parent) >= len(child) {
		return false
	}
	return child[:len(parent)] == parent && child[len(parent)] == '.'
}
