package command

import (
	"fmt"
)

// Compound runs several commands as one undo unit.
type Compound struct {
	lifecycle
	Name     string
	Commands []Command
}

// NewCompound groups commands under name.
func NewCompound(name string, commands ...Command) *Compound {
	return &Compound{
		lifecycle: lifecycle{kind: KindCompound},
		Name:      name,
		Commands:  commands,
	}
}

// Add appends a command. Only valid before Execute.
func (c *Compound) Add(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

// IsEmpty reports whether the compound holds no commands.
func (c *Compound) IsEmpty() bool {
	return len(c.Commands) == 0
}

// Execute implements Command. Children that have already been executed,
// as when the compound is built from a history group, are left alone.
func (c *Compound) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *Compound) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *Compound) Redo() error { return c.redo(c.apply) }

func (c *Compound) apply() error {
	applied := make([]Command, 0, len(c.Commands))
	for i, cmd := range c.Commands {
		var err error
		switch cmd.State() {
		case StateCreated:
			err = cmd.Execute()
		case StateUndone:
			err = cmd.Redo()
		default:
			continue
		}
		if err != nil {
			// Roll back what this pass applied.
			for j := len(applied) - 1; j >= 0; j-- {
				_ = applied[j].Undo()
			}
			return fmt.Errorf("compound '%s' step %d: %w", c.Name, i, err)
		}
		applied = append(applied, cmd)
	}
	return nil
}

func (c *Compound) revert() error {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		if err := c.Commands[i].Undo(); err != nil {
			// Reapply what this pass undid so the compound stays whole.
			for j := i + 1; j < len(c.Commands); j++ {
				_ = c.Commands[j].Redo()
			}
			return fmt.Errorf("undo compound '%s' step %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// Label implements Command.
func (c *Compound) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Commands) == 1 {
		return c.Commands[0].Label()
	}
	return fmt.Sprintf("%d operations", len(c.Commands))
}

// Policy implements Command. A compound propagates unless every child is
// best effort.
func (c *Compound) Policy() Policy {
	if len(c.Commands) == 0 {
		return PolicyPropagate
	}
	for _, cmd := range c.Commands {
		if cmd.Policy() != PolicyBestEffort {
			return PolicyPropagate
		}
	}
	return PolicyBestEffort
}
