package command

import (
	"errors"
	"fmt"

	"github.com/territorium/servertools/internal/model"
)

// AddWebModule inserts a web module.
type AddWebModule struct {
	lifecycle
	cfg *model.Configuration

	// Module is the module to add.
	Module model.WebModule
	// Index is the insertion position; -1 appends.
	Index int

	added model.WebModule
	pos   int
}

// NewAddWebModule appends module to cfg.
func NewAddWebModule(cfg *model.Configuration, module model.WebModule) *AddWebModule {
	return NewAddWebModuleAt(cfg, -1, module)
}

// NewAddWebModuleAt inserts module at index.
func NewAddWebModuleAt(cfg *model.Configuration, index int, module model.WebModule) *AddWebModule {
	return &AddWebModule{
		lifecycle: lifecycle{kind: KindAddWebModule},
		cfg:       cfg,
		Module:    module,
		Index:     index,
	}
}

// Execute implements Command.
func (c *AddWebModule) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *AddWebModule) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *AddWebModule) Redo() error { return c.redo(c.apply) }

// Added returns the module as stored, including its key.
func (c *AddWebModule) Added() model.WebModule { return c.added }

func (c *AddWebModule) apply() error {
	m := c.Module
	if c.added.Key != "" {
		// Reuse the key on redo so later commands still recognise it.
		m.Key = c.added.Key
	}
	added, err := c.cfg.AddWebModule(c.Index, m)
	if err != nil {
		return fmt.Errorf("add web module %s: %w", c.Module.Path, err)
	}
	c.added = added
	c.pos = c.Index
	if c.pos == -1 {
		c.pos = c.cfg.WebModuleCount() - 1
	}
	return nil
}

func (c *AddWebModule) revert() error {
	cur, err := c.cfg.WebModule(c.pos)
	if err != nil || cur.Key != c.added.Key {
		return &StaleIndexError{Kind: c.kind, Sequence: model.PathWebModule, Index: c.pos, Key: c.added.Key, Len: c.cfg.WebModuleCount()}
	}
	if _, err := c.cfg.RemoveWebModule(c.pos); err != nil {
		return fmt.Errorf("undo add web module %s: %w", c.Module.Path, err)
	}
	return nil
}

// Label implements Command.
func (c *AddWebModule) Label() string {
	return fmt.Sprintf("Add web module %s", c.Module.Path)
}

// ModifyWebModule replaces the fields of the web module at an index.
type ModifyWebModule struct {
	lifecycle
	cfg *model.Configuration

	Index  int
	Module model.WebModule

	old model.WebModule
}

// NewModifyWebModule replaces the module at index with module's fields.
func NewModifyWebModule(cfg *model.Configuration, index int, module model.WebModule) *ModifyWebModule {
	return &ModifyWebModule{
		lifecycle: lifecycle{kind: KindModifyWebModule},
		cfg:       cfg,
		Index:     index,
		Module:    module,
	}
}

// Execute implements Command.
func (c *ModifyWebModule) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *ModifyWebModule) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *ModifyWebModule) Redo() error { return c.redo(c.apply) }

// Old returns the module as it was before the last Execute or Redo.
func (c *ModifyWebModule) Old() model.WebModule { return c.old }

func (c *ModifyWebModule) apply() error {
	old, err := c.cfg.WebModule(c.Index)
	if err != nil {
		return fmt.Errorf("modify web module: %w", err)
	}
	if err := c.cfg.ModifyWebModule(c.Index, c.Module.DocumentBase, c.Module.Path, c.Module.Reloadable); err != nil {
		return fmt.Errorf("modify web module %s: %w", old.Path, err)
	}
	c.old = old
	return nil
}

func (c *ModifyWebModule) revert() error {
	cur, err := c.cfg.WebModule(c.Index)
	if err != nil || cur.Key != c.old.Key {
		return &StaleIndexError{Kind: c.kind, Sequence: model.PathWebModule, Index: c.Index, Key: c.old.Key, Len: c.cfg.WebModuleCount()}
	}
	return c.cfg.ModifyWebModule(c.Index, c.old.DocumentBase, c.old.Path, c.old.Reloadable)
}

// Label implements Command.
func (c *ModifyWebModule) Label() string {
	if c.old.Path != "" && c.old.Path != c.Module.Path {
		return fmt.Sprintf("Modify web module %s → %s", c.old.Path, c.Module.Path)
	}
	return fmt.Sprintf("Modify web module %s", c.Module.Path)
}

// RemoveWebModule removes the web module at an index.
type RemoveWebModule struct {
	lifecycle
	cfg *model.Configuration

	Index int

	removed model.WebModule
}

// NewRemoveWebModule removes the module at index.
func NewRemoveWebModule(cfg *model.Configuration, index int) *RemoveWebModule {
	return &RemoveWebModule{
		lifecycle: lifecycle{kind: KindRemoveWebModule},
		cfg:       cfg,
		Index:     index,
	}
}

// Execute implements Command.
func (c *RemoveWebModule) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *RemoveWebModule) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *RemoveWebModule) Redo() error { return c.redo(c.apply) }

// Removed returns the module taken out by the last Execute or Redo.
func (c *RemoveWebModule) Removed() model.WebModule { return c.removed }

func (c *RemoveWebModule) apply() error {
	removed, err := c.cfg.RemoveWebModule(c.Index)
	if err != nil {
		return fmt.Errorf("remove web module: %w", err)
	}
	c.removed = removed
	return nil
}

func (c *RemoveWebModule) revert() error {
	if _, err := c.cfg.AddWebModule(c.Index, c.removed); err != nil {
		if errors.Is(err, model.ErrIndexOutOfRange) {
			return &StaleIndexError{Kind: c.kind, Sequence: model.PathWebModule, Index: c.Index, Len: c.cfg.WebModuleCount()}
		}
		return fmt.Errorf("undo remove web module %s: %w", c.removed.Path, err)
	}
	return nil
}

// Label implements Command.
func (c *RemoveWebModule) Label() string {
	if c.removed.Path != "" {
		return fmt.Sprintf("Remove web module %s", c.removed.Path)
	}
	return fmt.Sprintf("Remove web module #%d", c.Index)
}
