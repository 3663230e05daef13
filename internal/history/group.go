package history

import (
	"fmt"
	"slices"

	"github.com/territorium/servertools/internal/command"
)

// BeginGroup starts a command group. Commands executed or pushed while the
// group is open become one undo unit. Groups nest: an inner group joins the
// outer one when it ends, and only the outermost EndGroup records anything.
func (h *History) BeginGroup(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.groupMarks) == 0 {
		h.groupName = name
		h.groupCmds = nil
	}
	h.groupMarks = append(h.groupMarks, len(h.groupCmds))
}

// closeGroupLocked pops the innermost group and returns where its commands
// start in groupCmds.
func (h *History) closeGroupLocked() int {
	n := len(h.groupMarks) - 1
	mark := h.groupMarks[n]
	h.groupMarks = h.groupMarks[:n]
	return mark
}

// EndGroup closes the innermost group. Closing the outermost group records
// its commands as a single command.Compound. An empty group records
// nothing.
func (h *History) EndGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.groupMarks) == 0 {
		return
	}
	h.closeGroupLocked()
	if len(h.groupMarks) > 0 {
		return
	}
	cmds := h.groupCmds
	h.groupCmds = nil
	if len(cmds) == 0 {
		return
	}

	compound := command.NewCompound(h.groupName, cmds...)
	// Every child is already applied, so this only moves the compound
	// itself to Executed.
	if err := compound.Execute(); err != nil {
		h.logger.Error("group %q: %v", h.groupName, err)
		return
	}
	h.pushLocked(compound)
}

// CancelGroup closes the innermost group without recording it.
// Commands already executed in the group stay applied. Inside an outer
// group they still belong to that group.
func (h *History) CancelGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.groupMarks) == 0 {
		return
	}
	h.closeGroupLocked()
	if len(h.groupMarks) == 0 {
		h.groupCmds = nil
	}
}

// RollbackGroup undoes the commands of the innermost group in reverse
// order and closes it without recording anything. An outer group keeps
// the commands it ran before the inner group began.
func (h *History) RollbackGroup() error {
	h.mu.Lock()
	if len(h.groupMarks) == 0 {
		h.mu.Unlock()
		return nil
	}
	mark := h.closeGroupLocked()
	cmds := slices.Clone(h.groupCmds[mark:])
	h.groupCmds = h.groupCmds[:mark]
	if len(h.groupMarks) == 0 {
		h.groupCmds = nil
	}
	h.mu.Unlock()

	for i := len(cmds) - 1; i >= 0; i-- {
		if err := h.step(command.OpUndo, cmds[i], cmds[i].Undo); err != nil {
			// Whatever is still applied stays with the outer group.
			h.mu.Lock()
			if len(h.groupMarks) > 0 {
				h.groupCmds = append(h.groupCmds, cmds[:i+1]...)
			}
			h.mu.Unlock()
			return fmt.Errorf("rollback step %d: %w", i, err)
		}
	}
	return nil
}

// IsGrouping returns true if a group is open.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groupMarks) > 0
}

// GroupDepth returns the number of open groups.
func (h *History) GroupDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groupMarks)
}

// GroupScope provides a convenient way to group commands using defer.
//
//	func addShop(h *History) error {
//	    g := h.GroupScope("Add shop")
//	    defer g.End()
//	    ...
//	}
type GroupScope struct {
	history *History
	active  bool
}

// GroupScope starts a new group scope.
// Call End() or use with defer to properly close the group.
func (h *History) GroupScope(name string) *GroupScope {
	h.BeginGroup(name)
	return &GroupScope{history: h, active: true}
}

// End ends the group scope.
// Safe to call multiple times; only the first call has effect.
func (g *GroupScope) End() {
	if g.active {
		g.history.EndGroup()
		g.active = false
	}
}

// Cancel closes the scope without recording it.
func (g *GroupScope) Cancel() {
	if g.active {
		g.history.CancelGroup()
		g.active = false
	}
}

// Transaction runs fn inside a group. If fn fails the commands it executed
// are undone and the error is returned. Transactions nest; a failed inner
// transaction only undoes its own commands.
func (h *History) Transaction(name string, fn func() error) error {
	h.BeginGroup(name)

	if err := fn(); err != nil {
		if rerr := h.RollbackGroup(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}

	h.EndGroup()
	return nil
}

// ExecuteGrouped executes cmds as a single undo unit. If one fails, the
// ones before it are undone.
func (h *History) ExecuteGrouped(name string, cmds ...command.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	if len(cmds) == 1 {
		return h.Execute(cmds[0])
	}

	return h.Transaction(name, func() error {
		for _, cmd := range cmds {
			if err := h.Execute(cmd); err != nil {
				return err
			}
		}
		return nil
	})
}

// Checkpoint represents a point in history that can be returned to.
type Checkpoint struct {
	undoDepth int
}

// CreateCheckpoint creates a checkpoint at the current history position.
func (h *History) CreateCheckpoint() Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Checkpoint{undoDepth: len(h.undoStack)}
}

// UndoToCheckpoint undoes all entries recorded since cp.
func (h *History) UndoToCheckpoint(cp Checkpoint) error {
	for h.UndoCount() > cp.undoDepth {
		if err := h.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// RedoToCheckpoint redoes entries until the undo depth reaches cp, as far
// as the redo stack allows.
func (h *History) RedoToCheckpoint(cp Checkpoint) error {
	for h.UndoCount() < cp.undoDepth && h.CanRedo() {
		if err := h.Redo(); err != nil {
			return err
		}
	}
	return nil
}
