package command

import (
	"fmt"

	"github.com/territorium/servertools/internal/model"
)

// ModifyPort changes the number of a server port.
type ModifyPort struct {
	lifecycle
	cfg *model.Configuration

	ID   string
	Port int

	old int
}

// NewModifyPort sets the port with id to port.
func NewModifyPort(cfg *model.Configuration, id string, port int) *ModifyPort {
	return &ModifyPort{
		lifecycle: lifecycle{kind: KindModifyPort},
		cfg:       cfg,
		ID:        id,
		Port:      port,
	}
}

// Execute implements Command.
func (c *ModifyPort) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *ModifyPort) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *ModifyPort) Redo() error { return c.redo(c.apply) }

// Old returns the port number before the last Execute or Redo.
func (c *ModifyPort) Old() int { return c.old }

func (c *ModifyPort) apply() error {
	p, err := c.cfg.ServerPort(c.ID)
	if err != nil {
		return fmt.Errorf("modify port: %w", err)
	}
	if err := c.cfg.SetServerPort(c.ID, c.Port); err != nil {
		return fmt.Errorf("modify port %s: %w", c.ID, err)
	}
	c.old = p.Port
	return nil
}

func (c *ModifyPort) revert() error {
	if err := c.cfg.SetServerPort(c.ID, c.old); err != nil {
		return fmt.Errorf("undo modify port %s: %w", c.ID, err)
	}
	return nil
}

// Label implements Command.
func (c *ModifyPort) Label() string {
	if c.state != StateCreated {
		return fmt.Sprintf("Modify port %s (%d → %d)", c.ID, c.old, c.Port)
	}
	return fmt.Sprintf("Modify port %s to %d", c.ID, c.Port)
}
