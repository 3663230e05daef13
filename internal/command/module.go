package command

import (
	"context"
	"fmt"
	"time"

	"github.com/territorium/servertools/internal/logging"
	"github.com/territorium/servertools/internal/model"
)

// DefaultModuleTimeout bounds a single live server call.
const DefaultModuleTimeout = 30 * time.Second

// ModuleTarget is a running server that modules can be attached to.
type ModuleTarget interface {
	AttachModule(ctx context.Context, module model.WebModule) error
	DetachModule(ctx context.Context, module model.WebModule) error
}

// liveModule is the shared best-effort machinery of AttachModule and
// DetachModule.
type liveModule struct {
	lifecycle
	target  ModuleTarget
	module  model.WebModule
	timeout time.Duration
	logger  *logging.Logger
	lastErr error
}

// Policy implements Command.
func (c *liveModule) Policy() Policy { return PolicyBestEffort }

// LastError returns the failure swallowed by the most recent step, if any.
func (c *liveModule) LastError() error { return c.lastErr }

// SetTimeout overrides DefaultModuleTimeout.
func (c *liveModule) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SetLogger sets the logger used for swallowed failures.
func (c *liveModule) SetLogger(l *logging.Logger) {
	if l != nil {
		c.logger = l
	}
}

func (c *liveModule) call(op Op, fn func(context.Context, model.WebModule) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.lastErr = fn(ctx, c.module)
	if c.lastErr != nil {
		c.logger.WithFields(map[string]any{
			"kind":   c.kind.String(),
			"op":     string(op),
			"module": c.module.Path,
		}).Warn("live module update failed: %v", c.lastErr)
	}
	return nil
}

func newLiveModule(kind Kind, target ModuleTarget, module model.WebModule) liveModule {
	return liveModule{
		lifecycle: lifecycle{kind: kind},
		target:    target,
		module:    module,
		timeout:   DefaultModuleTimeout,
		logger:    logging.Default().WithComponent("command"),
	}
}

// AttachModule adds a module to a running server. Best effort.
type AttachModule struct {
	liveModule
}

// NewAttachModule attaches module to target.
func NewAttachModule(target ModuleTarget, module model.WebModule) *AttachModule {
	return &AttachModule{liveModule: newLiveModule(KindAttachModule, target, module)}
}

// Execute implements Command.
func (c *AttachModule) Execute() error {
	return c.execute(func() error { return c.call(OpExecute, c.target.AttachModule) })
}

// Undo implements Command.
func (c *AttachModule) Undo() error {
	return c.undo(func() error { return c.call(OpUndo, c.target.DetachModule) })
}

// Redo implements Command.
func (c *AttachModule) Redo() error {
	return c.redo(func() error { return c.call(OpRedo, c.target.AttachModule) })
}

// Label implements Command.
func (c *AttachModule) Label() string {
	return fmt.Sprintf("Attach module %s", c.module.Path)
}

// DetachModule removes a module from a running server. Best effort.
type DetachModule struct {
	liveModule
}

// NewDetachModule detaches module from target.
func NewDetachModule(target ModuleTarget, module model.WebModule) *DetachModule {
	return &DetachModule{liveModule: newLiveModule(KindDetachModule, target, module)}
}

// Execute implements Command.
func (c *DetachModule) Execute() error {
	return c.execute(func() error { return c.call(OpExecute, c.target.DetachModule) })
}

// Undo implements Command.
func (c *DetachModule) Undo() error {
	return c.undo(func() error { return c.call(OpUndo, c.target.AttachModule) })
}

// Redo implements Command.
func (c *DetachModule) Redo() error {
	return c.redo(func() error { return c.call(OpRedo, c.target.DetachModule) })
}

// Label implements Command.
func (c *DetachModule) Label() string {
	return fmt.Sprintf("Detach module %s", c.module.Path)
}
