package command

import (
	"errors"
	"fmt"

	"github.com/territorium/servertools/internal/model"
)

// AddMimeMapping inserts a MIME mapping.
type AddMimeMapping struct {
	lifecycle
	cfg *model.Configuration

	Mapping model.MimeMapping
	// Index is the insertion position; -1 appends.
	Index int

	added model.MimeMapping
	pos   int
}

// NewAddMimeMapping appends mapping to cfg.
func NewAddMimeMapping(cfg *model.Configuration, mapping model.MimeMapping) *AddMimeMapping {
	return NewAddMimeMappingAt(cfg, -1, mapping)
}

// NewAddMimeMappingAt inserts mapping at index.
func NewAddMimeMappingAt(cfg *model.Configuration, index int, mapping model.MimeMapping) *AddMimeMapping {
	return &AddMimeMapping{
		lifecycle: lifecycle{kind: KindAddMimeMapping},
		cfg:       cfg,
		Mapping:   mapping,
		Index:     index,
	}
}

// Execute implements Command.
func (c *AddMimeMapping) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *AddMimeMapping) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *AddMimeMapping) Redo() error { return c.redo(c.apply) }

func (c *AddMimeMapping) apply() error {
	m := c.Mapping
	if c.added.Key != "" {
		m.Key = c.added.Key
	}
	added, err := c.cfg.AddMimeMapping(c.Index, m)
	if err != nil {
		return fmt.Errorf("add mime mapping %s: %w", c.Mapping.Extension, err)
	}
	c.added = added
	c.pos = c.Index
	if c.pos == -1 {
		c.pos = c.cfg.MimeMappingCount() - 1
	}
	return nil
}

func (c *AddMimeMapping) revert() error {
	cur, err := c.cfg.MimeMapping(c.pos)
	if err != nil || cur.Key != c.added.Key {
		return &StaleIndexError{Kind: c.kind, Sequence: model.PathMimeMapping, Index: c.pos, Key: c.added.Key, Len: c.cfg.MimeMappingCount()}
	}
	_, err = c.cfg.RemoveMimeMapping(c.pos)
	return err
}

// Label implements Command.
func (c *AddMimeMapping) Label() string {
	return fmt.Sprintf("Add MIME mapping %s", c.Mapping)
}

// ModifyMimeMapping replaces the MIME mapping at an index.
type ModifyMimeMapping struct {
	lifecycle
	cfg *model.Configuration

	Index   int
	Mapping model.MimeMapping

	old model.MimeMapping
}

// NewModifyMimeMapping replaces the mapping at index.
func NewModifyMimeMapping(cfg *model.Configuration, index int, mapping model.MimeMapping) *ModifyMimeMapping {
	return &ModifyMimeMapping{
		lifecycle: lifecycle{kind: KindModifyMimeMapping},
		cfg:       cfg,
		Index:     index,
		Mapping:   mapping,
	}
}

// Execute implements Command.
func (c *ModifyMimeMapping) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *ModifyMimeMapping) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *ModifyMimeMapping) Redo() error { return c.redo(c.apply) }

func (c *ModifyMimeMapping) apply() error {
	old, err := c.cfg.MimeMapping(c.Index)
	if err != nil {
		return fmt.Errorf("modify mime mapping: %w", err)
	}
	if err := c.cfg.ModifyMimeMapping(c.Index, c.Mapping); err != nil {
		return fmt.Errorf("modify mime mapping %s: %w", old.Extension, err)
	}
	c.old = old
	return nil
}

func (c *ModifyMimeMapping) revert() error {
	cur, err := c.cfg.MimeMapping(c.Index)
	if err != nil || cur.Key != c.old.Key {
		return &StaleIndexError{Kind: c.kind, Sequence: model.PathMimeMapping, Index: c.Index, Key: c.old.Key, Len: c.cfg.MimeMappingCount()}
	}
	return c.cfg.ModifyMimeMapping(c.Index, c.old)
}

// Label implements Command.
func (c *ModifyMimeMapping) Label() string {
	if c.old.Extension != "" {
		return fmt.Sprintf("Modify MIME mapping %s → %s", c.old, c.Mapping)
	}
	return fmt.Sprintf("Modify MIME mapping %s", c.Mapping)
}

// RemoveMimeMapping removes the MIME mapping at an index.
type RemoveMimeMapping struct {
	lifecycle
	cfg *model.Configuration

	Index int

	removed model.MimeMapping
}

// NewRemoveMimeMapping removes the mapping at index.
func NewRemoveMimeMapping(cfg *model.Configuration, index int) *RemoveMimeMapping {
	return &RemoveMimeMapping{
		lifecycle: lifecycle{kind: KindRemoveMimeMapping},
		cfg:       cfg,
		Index:     index,
	}
}

// Execute implements Command.
func (c *RemoveMimeMapping) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *RemoveMimeMapping) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *RemoveMimeMapping) Redo() error { return c.redo(c.apply) }

func (c *RemoveMimeMapping) apply() error {
	removed, err := c.cfg.RemoveMimeMapping(c.Index)
	if err != nil {
		return fmt.Errorf("remove mime mapping: %w", err)
	}
	c.removed = removed
	return nil
}

func (c *RemoveMimeMapping) revert() error {
	if _, err := c.cfg.AddMimeMapping(c.Index, c.removed); err != nil {
		if errors.Is(err, model.ErrIndexOutOfRange) {
			return &StaleIndexError{Kind: c.kind, Sequence: model.PathMimeMapping, Index: c.Index, Len: c.cfg.MimeMappingCount()}
		}
		return err
	}
	return nil
}

// Label implements Command.
func (c *RemoveMimeMapping) Label() string {
	if c.removed.Extension != "" {
		return fmt.Sprintf("Remove MIME mapping %s", c.removed)
	}
	return fmt.Sprintf("Remove MIME mapping #%d", c.Index)
}
