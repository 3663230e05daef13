package command

import (
	"fmt"

	"github.com/territorium/servertools/internal/model"
)

// SetProperty assigns one scalar setting of a ServerWrapper.
type SetProperty[T comparable] struct {
	lifecycle
	w *model.ServerWrapper

	// Value is the value to assign.
	Value T

	name string
	get  func(*model.ServerWrapper) T
	set  func(*model.ServerWrapper, T)
	old  T
}

func newSetProperty[T comparable](kind Kind, name string, w *model.ServerWrapper, v T,
	get func(*model.ServerWrapper) T, set func(*model.ServerWrapper, T)) *SetProperty[T] {
	return &SetProperty[T]{
		lifecycle: lifecycle{kind: kind},
		w:         w,
		Value:     v,
		name:      name,
		get:       get,
		set:       set,
	}
}

// NewSetDebugMode toggles debug launch mode.
func NewSetDebugMode(w *model.ServerWrapper, v bool) *SetProperty[bool] {
	return newSetProperty(KindSetDebugMode, "debug mode", w, v,
		(*model.ServerWrapper).Debug, (*model.ServerWrapper).SetDebug)
}

// NewSetSecure toggles the security manager.
func NewSetSecure(w *model.ServerWrapper, v bool) *SetProperty[bool] {
	return newSetProperty(KindSetSecure, "security", w, v,
		(*model.ServerWrapper).Secure, (*model.ServerWrapper).SetSecure)
}

// NewSetDeployDirectory changes the deploy directory.
func NewSetDeployDirectory(w *model.ServerWrapper, dir string) *SetProperty[string] {
	return newSetProperty(KindSetDeployDirectory, "deploy directory", w, dir,
		(*model.ServerWrapper).DeployDirectory, (*model.ServerWrapper).SetDeployDirectory)
}

// NewSetInstanceDirectory changes the instance directory.
func NewSetInstanceDirectory(w *model.ServerWrapper, dir string) *SetProperty[string] {
	return newSetProperty(KindSetInstanceDirectory, "instance directory", w, dir,
		(*model.ServerWrapper).InstanceDirectory, (*model.ServerWrapper).SetInstanceDirectory)
}

// NewSetTestEnvironment toggles test environment mode.
func NewSetTestEnvironment(w *model.ServerWrapper, v bool) *SetProperty[bool] {
	return newSetProperty(KindSetTestEnvironment, "test environment", w, v,
		(*model.ServerWrapper).TestEnvironment, (*model.ServerWrapper).SetTestEnvironment)
}

// NewSetModulesReloadableByDefault changes the default reloadable flag.
func NewSetModulesReloadableByDefault(w *model.ServerWrapper, v bool) *SetProperty[bool] {
	return newSetProperty(KindSetModulesReloadableByDefault, "modules reloadable by default", w, v,
		(*model.ServerWrapper).ModulesReloadableByDefault, (*model.ServerWrapper).SetModulesReloadableByDefault)
}

// NewSetSaveSeparateContextFiles toggles separate context files.
func NewSetSaveSeparateContextFiles(w *model.ServerWrapper, v bool) *SetProperty[bool] {
	return newSetProperty(KindSetSaveSeparateContextFiles, "save separate context files", w, v,
		(*model.ServerWrapper).SaveSeparateContextFiles, (*model.ServerWrapper).SetSaveSeparateContextFiles)
}

// NewSetServeModulesWithoutPublish toggles serving modules in place.
func NewSetServeModulesWithoutPublish(w *model.ServerWrapper, v bool) *SetProperty[bool] {
	return newSetProperty(KindSetServeModulesWithoutPublish, "serve modules without publish", w, v,
		(*model.ServerWrapper).ServeModulesWithoutPublish, (*model.ServerWrapper).SetServeModulesWithoutPublish)
}

// Execute implements Command.
func (c *SetProperty[T]) Execute() error { return c.execute(c.apply) }

// Undo implements Command.
func (c *SetProperty[T]) Undo() error { return c.undo(c.revert) }

// Redo implements Command.
func (c *SetProperty[T]) Redo() error { return c.redo(c.apply) }

// Old returns the value before the last Execute or Redo.
func (c *SetProperty[T]) Old() T { return c.old }

func (c *SetProperty[T]) apply() error {
	c.old = c.get(c.w)
	c.set(c.w, c.Value)
	return nil
}

func (c *SetProperty[T]) revert() error {
	c.set(c.w, c.old)
	return nil
}

// Label implements Command.
func (c *SetProperty[T]) Label() string {
	if c.state != StateCreated {
		return fmt.Sprintf("Set %s (%v → %v)", c.name, c.old, c.Value)
	}
	return fmt.Sprintf("Set %s to %v", c.name, c.Value)
}
