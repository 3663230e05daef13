package command

import (
	"errors"
	"fmt"
)

// Command is an undoable edit of one aggregate.
type Command interface {
	// Execute applies the edit, capturing what Undo needs. Called once.
	Execute() error

	// Undo reverses the last Execute or Redo.
	Undo() error

	// Redo reapplies the edit after Undo. Prior state is captured again,
	// so the aggregate must not have changed since Undo.
	Redo() error

	// Label describes the edit for undo/redo menus.
	Label() string

	// Kind identifies the variant.
	Kind() Kind

	// State is the lifecycle position.
	State() State

	// Policy says whether failures reach the caller.
	Policy() Policy
}

// Kind identifies a command variant.
type Kind int

const (
	KindAddWebModule Kind = iota
	KindModifyWebModule
	KindRemoveWebModule
	KindAddMimeMapping
	KindModifyMimeMapping
	KindRemoveMimeMapping
	KindModifyPort
	KindSetDebugMode
	KindSetSecure
	KindSetDeployDirectory
	KindSetInstanceDirectory
	KindSetTestEnvironment
	KindSetModulesReloadableByDefault
	KindSetSaveSeparateContextFiles
	KindSetServeModulesWithoutPublish
	KindAttachModule
	KindDetachModule
	KindCompound
)

var kindNames = [...]string{
	KindAddWebModule:                  "AddWebModule",
	KindModifyWebModule:               "ModifyWebModule",
	KindRemoveWebModule:               "RemoveWebModule",
	KindAddMimeMapping:                "AddMimeMapping",
	KindModifyMimeMapping:             "ModifyMimeMapping",
	KindRemoveMimeMapping:             "RemoveMimeMapping",
	KindModifyPort:                    "ModifyPort",
	KindSetDebugMode:                  "SetDebugMode",
	KindSetSecure:                     "SetSecure",
	KindSetDeployDirectory:            "SetDeployDirectory",
	KindSetInstanceDirectory:          "SetInstanceDirectory",
	KindSetTestEnvironment:            "SetTestEnvironment",
	KindSetModulesReloadableByDefault: "SetModulesReloadableByDefault",
	KindSetSaveSeparateContextFiles:   "SetSaveSeparateContextFiles",
	KindSetServeModulesWithoutPublish: "SetServeModulesWithoutPublish",
	KindAttachModule:                  "AttachModule",
	KindDetachModule:                  "DetachModule",
	KindCompound:                      "Compound",
}

// String returns the variant name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// State is a command's lifecycle position.
//
//	Created -> Executed -> Undone <-> Redone
type State int

const (
	StateCreated State = iota
	StateExecuted
	StateUndone
	StateRedone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateExecuted:
		return "executed"
	case StateUndone:
		return "undone"
	case StateRedone:
		return "redone"
	default:
		return "unknown"
	}
}

// Applied reports whether the edit is currently in effect.
func (s State) Applied() bool {
	return s == StateExecuted || s == StateRedone
}

// Policy is a command's failure policy.
type Policy int

const (
	// PolicyPropagate returns failures to the caller.
	PolicyPropagate Policy = iota
	// PolicyBestEffort logs failures and reports success.
	PolicyBestEffort
)

// String returns the policy name.
func (p Policy) String() string {
	if p == PolicyBestEffort {
		return "best-effort"
	}
	return "propagate"
}

// Op names a lifecycle step.
type Op string

const (
	OpExecute Op = "execute"
	OpUndo    Op = "undo"
	OpRedo    Op = "redo"
)

// Errors returned by commands.
var (
	// ErrInvalidState indicates a lifecycle step was called out of order.
	ErrInvalidState = errors.New("invalid command state")

	// ErrStaleIndex indicates the aggregate no longer matches what the
	// command captured, usually because undo ran out of LIFO order.
	ErrStaleIndex = errors.New("stale index")
)

// StateError reports a lifecycle step called out of order.
type StateError struct {
	Kind  Kind
	Op    Op
	State State
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: cannot %s in state %s", e.Kind, e.Op, e.State)
}

// Is matches ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// StaleIndexError reports that the element a command captured is no longer
// at the captured position.
type StaleIndexError struct {
	Kind     Kind
	Sequence string
	Index    int
	// Key is the captured element key, empty for re-insertions.
	Key string
	// Len is the sequence length when the mismatch was found.
	Len int
}

// Error implements the error interface.
func (e *StaleIndexError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s at index %d is no longer %s (len %d)", e.Kind, e.Sequence, e.Index, e.Key, e.Len)
	}
	return fmt.Sprintf("%s: %s index %d no longer valid (len %d)", e.Kind, e.Sequence, e.Index, e.Len)
}

// Is matches ErrStaleIndex.
func (e *StaleIndexError) Is(target error) bool {
	return target == ErrStaleIndex
}

// lifecycle enforces the state machine shared by all commands.
// A failed step leaves the state unchanged.
type lifecycle struct {
	kind  Kind
	state State
}

// Kind implements Command.
func (l *lifecycle) Kind() Kind { return l.kind }

// State implements Command.
func (l *lifecycle) State() State { return l.state }

// Policy implements Command. Commands with another policy override it.
func (l *lifecycle) Policy() Policy { return PolicyPropagate }

func (l *lifecycle) execute(apply func() error) error {
	if l.state != StateCreated {
		return &StateError{Kind: l.kind, Op: OpExecute, State: l.state}
	}
	if err := apply(); err != nil {
		return err
	}
	l.state = StateExecuted
	return nil
}

func (l *lifecycle) undo(revert func() error) error {
	if !l.state.Applied() {
		return &StateError{Kind: l.kind, Op: OpUndo, State: l.state}
	}
	if err := revert(); err != nil {
		return err
	}
	l.state = StateUndone
	return nil
}

func (l *lifecycle) redo(apply func() error) error {
	if l.state != StateUndone {
		return &StateError{Kind: l.kind, Op: OpRedo, State: l.state}
	}
	if err := apply(); err != nil {
		return err
	}
	l.state = StateRedone
	return nil
}
