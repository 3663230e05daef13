// Package command implements the undoable edits applied to a server
// configuration.
//
// Every command targets exactly one aggregate, either a
// model.Configuration or a model.ServerWrapper, fixed at construction.
// Execute captures the state needed to reverse the edit; Undo restores it;
// Redo runs the edit again and recaptures.
//
// # Ordering
//
// Commands are driven by a LIFO history. Undo relies on the aggregate
// looking the way Execute left it. Positional commands record both the
// index and the element key; when the two no longer agree Undo fails with
// ErrStaleIndex instead of touching some other element.
//
// # Failure policy
//
// Configuration and server wrapper edits use PolicyPropagate: every error
// reaches the caller and the command state does not advance.
//
// AttachModule and DetachModule act on a live server and use
// PolicyBestEffort: a failing server call is logged, recorded in
// LastError, and the step still reports success.
package command
