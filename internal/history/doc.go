// Package history keeps the undo and redo stacks of a configuration
// editing session.
//
// Commands from package command are executed through a History, which
// records them for later undo:
//
//	h := history.New(history.WithMaxEntries(500))
//	if err := h.Execute(command.NewModifyPort(cfg, "http", 8081)); err != nil {
//		return err
//	}
//	h.Undo()
//	h.Redo()
//
// Undo and redo are strictly LIFO. A command's captured positions are only
// valid when it is undone in the reverse order of execution, which the
// stacks guarantee.
//
// # Grouping
//
// Several commands can form a single undo unit:
//
//	h.BeginGroup("Add shop module")
//	h.Execute(addModule)
//	h.Execute(addMime)
//	h.EndGroup()
//
// Transaction and ExecuteGrouped roll the group back when a step fails.
//
// # Save point
//
// MarkSaved records the current position as the persisted state; IsDirty
// reports whether undo or redo has moved away from it.
package history
