package model

import (
	"fmt"

	"github.com/territorium/servertools/internal/notify"
)

// Property paths published by Configuration.
const (
	PathWebModule   = "webModule"
	PathMimeMapping = "mimeMapping"
	PathPort        = "port"
)

// Configuration is the root aggregate of a server configuration.
type Configuration struct {
	webModules   []WebModule
	mimeMappings []MimeMapping
	ports        []ServerPort

	notifier *notify.Notifier
}

// NewConfiguration creates an empty configuration.
func NewConfiguration() *Configuration {
	return &Configuration{notifier: notify.New()}
}

// Notifier returns the change notifier for this configuration.
func (c *Configuration) Notifier() *notify.Notifier {
	return c.notifier
}

// WebModules returns a copy of the web module sequence.
func (c *Configuration) WebModules() []WebModule {
	return append([]WebModule(nil), c.webModules...)
}

// WebModuleCount returns the number of web modules.
func (c *Configuration) WebModuleCount() int {
	return len(c.webModules)
}

// WebModule returns the web module at index.
func (c *Configuration) WebModule(index int) (WebModule, error) {
	if index < 0 || index >= len(c.webModules) {
		return WebModule{}, &IndexError{Sequence: PathWebModule, Index: index, Len: len(c.webModules)}
	}
	return c.webModules[index], nil
}

// IndexOfWebModule returns the position of the module with key, or -1.
func (c *Configuration) IndexOfWebModule(key string) int {
	for i, m := range c.webModules {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// AddWebModule inserts module at index; -1 appends.
// A module without a Key is given one. The stored module is returned.
func (c *Configuration) AddWebModule(index int, module WebModule) (WebModule, error) {
	if module.Key == "" {
		module.Key = newKey()
	}
	seq, pos, err := insertAt(c.webModules, index, module, PathWebModule)
	if err != nil {
		return WebModule{}, err
	}
	c.webModules = seq
	c.notifier.Notify(notify.Change{Path: PathWebModule, Type: notify.ChangeAdd, Index: pos, NewValue: module})
	return module, nil
}

// ModifyWebModule replaces the fields of the module at index, keeping its Key.
func (c *Configuration) ModifyWebModule(index int, documentBase, path string, reloadable bool) error {
	old, err := c.WebModule(index)
	if err != nil {
		return err
	}
	updated := WebModule{Key: old.Key, DocumentBase: documentBase, Path: path, Reloadable: reloadable}
	c.webModules[index] = updated
	c.notifier.Notify(notify.Change{Path: PathWebModule, Type: notify.ChangeModify, Index: index, OldValue: old, NewValue: updated})
	return nil
}

// RemoveWebModule removes and returns the module at index.
func (c *Configuration) RemoveWebModule(index int) (WebModule, error) {
	seq, removed, err := removeAt(c.webModules, index, PathWebModule)
	if err != nil {
		return WebModule{}, err
	}
	c.webModules = seq
	c.notifier.Notify(notify.Change{Path: PathWebModule, Type: notify.ChangeRemove, Index: index, OldValue: removed})
	return removed, nil
}

// MimeMappings returns a copy of the MIME mapping sequence.
func (c *Configuration) MimeMappings() []MimeMapping {
	return append([]MimeMapping(nil), c.mimeMappings...)
}

// MimeMappingCount returns the number of MIME mappings.
func (c *Configuration) MimeMappingCount() int {
	return len(c.mimeMappings)
}

// MimeMapping returns the mapping at index.
func (c *Configuration) MimeMapping(index int) (MimeMapping, error) {
	if index < 0 || index >= len(c.mimeMappings) {
		return MimeMapping{}, &IndexError{Sequence: PathMimeMapping, Index: index, Len: len(c.mimeMappings)}
	}
	return c.mimeMappings[index], nil
}

// IndexOfMimeMapping returns the position of the mapping with key, or -1.
func (c *Configuration) IndexOfMimeMapping(key string) int {
	for i, m := range c.mimeMappings {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// AddMimeMapping inserts mapping at index; -1 appends.
func (c *Configuration) AddMimeMapping(index int, mapping MimeMapping) (MimeMapping, error) {
	if mapping.Key == "" {
		mapping.Key = newKey()
	}
	seq, pos, err := insertAt(c.mimeMappings, index, mapping, PathMimeMapping)
	if err != nil {
		return MimeMapping{}, err
	}
	c.mimeMappings = seq
	c.notifier.Notify(notify.Change{Path: PathMimeMapping, Type: notify.ChangeAdd, Index: pos, NewValue: mapping})
	return mapping, nil
}

// ModifyMimeMapping replaces the mapping at index, keeping its Key.
func (c *Configuration) ModifyMimeMapping(index int, mapping MimeMapping) error {
	old, err := c.MimeMapping(index)
	if err != nil {
		return err
	}
	mapping.Key = old.Key
	c.mimeMappings[index] = mapping
	c.notifier.Notify(notify.Change{Path: PathMimeMapping, Type: notify.ChangeModify, Index: index, OldValue: old, NewValue: mapping})
	return nil
}

// RemoveMimeMapping removes and returns the mapping at index.
func (c *Configuration) RemoveMimeMapping(index int) (MimeMapping, error) {
	seq, removed, err := removeAt(c.mimeMappings, index, PathMimeMapping)
	if err != nil {
		return MimeMapping{}, err
	}
	c.mimeMappings = seq
	c.notifier.Notify(notify.Change{Path: PathMimeMapping, Type: notify.ChangeRemove, Index: index, OldValue: removed})
	return removed, nil
}

// ServerPorts returns a copy of the server ports.
func (c *Configuration) ServerPorts() []ServerPort {
	return append([]ServerPort(nil), c.ports...)
}

// ServerPort returns the port with id.
func (c *Configuration) ServerPort(id string) (ServerPort, error) {
	for _, p := range c.ports {
		if p.ID == id {
			return p, nil
		}
	}
	return ServerPort{}, fmt.Errorf("%w: %q", ErrPortNotFound, id)
}

// AddServerPort declares a new port.
func (c *Configuration) AddServerPort(port ServerPort) error {
	if !ValidPort(port.Port) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port.Port)
	}
	for _, p := range c.ports {
		if p.ID == port.ID {
			return fmt.Errorf("%w: %q", ErrDuplicatePort, port.ID)
		}
	}
	c.ports = append(c.ports, port)
	c.notifier.Notify(notify.Change{Path: PathPort + "." + port.ID, Type: notify.ChangeAdd, Index: len(c.ports) - 1, NewValue: port.Port})
	return nil
}

// SetServerPort changes the number of the port with id.
func (c *Configuration) SetServerPort(id string, port int) error {
	if !ValidPort(port) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	for i := range c.ports {
		if c.ports[i].ID != id {
			continue
		}
		old := c.ports[i].Port
		c.ports[i].Port = port
		c.notifier.Notify(notify.Change{Path: PathPort + "." + id, Type: notify.ChangeSet, Index: -1, OldValue: old, NewValue: port})
		return nil
	}
	return fmt.Errorf("%w: %q", ErrPortNotFound, id)
}

// Clone returns a deep copy with a fresh notifier. Keys are preserved.
func (c *Configuration) Clone() *Configuration {
	return &Configuration{
		webModules:   c.WebModules(),
		mimeMappings: c.MimeMappings(),
		ports:        c.ServerPorts(),
		notifier:     notify.New(),
	}
}

// Equal reports whether both configurations hold the same elements in the
// same order. Keys are compared too.
func (c *Configuration) Equal(o *Configuration) bool {
	if len(c.webModules) != len(o.webModules) ||
		len(c.mimeMappings) != len(o.mimeMappings) ||
		len(c.ports) != len(o.ports) {
		return false
	}
	for i := range c.webModules {
		if c.webModules[i] != o.webModules[i] {
			return false
		}
	}
	for i := range c.mimeMappings {
		if c.mimeMappings[i] != o.mimeMappings[i] {
			return false
		}
	}
	for i := range c.ports {
		if c.ports[i] != o.ports[i] {
			return false
		}
	}
	return true
}

// SameContent is Equal ignoring Keys.
func (c *Configuration) SameContent(o *Configuration) bool {
	if len(c.webModules) != len(o.webModules) ||
		len(c.mimeMappings) != len(o.mimeMappings) ||
		len(c.ports) != len(o.ports) {
		return false
	}
	for i := range c.webModules {
		if !c.webModules[i].sameContent(o.webModules[i]) {
			return false
		}
	}
	for i := range c.mimeMappings {
		if !c.mimeMappings[i].sameContent(o.mimeMappings[i]) {
			return false
		}
	}
	for i := range c.ports {
		if c.ports[i] != o.ports[i] {
			return false
		}
	}
	return true
}

// insertAt inserts v at index (-1 appends) and returns the new slice and
// the position used.
func insertAt[T any](seq []T, index int, v T, name string) ([]T, int, error) {
	if index == -1 {
		index = len(seq)
	}
	if index < 0 || index > len(seq) {
		return seq, 0, &IndexError{Sequence: name, Index: index, Len: len(seq) + 1}
	}
	seq = append(seq, v)
	copy(seq[index+1:], seq[index:])
	seq[index] = v
	return seq, index, nil
}

func removeAt[T any](seq []T, index int, name string) ([]T, T, error) {
	var zero T
	if index < 0 || index >= len(seq) {
		return seq, zero, &IndexError{Sequence: name, Index: index, Len: len(seq)}
	}
	removed := seq[index]
	out := make([]T, 0, len(seq)-1)
	out = append(out, seq[:index]...)
	out = append(out, seq[index+1:]...)
	return out, removed, nil
}
