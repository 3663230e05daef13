package model

import (
	"github.com/territorium/servertools/internal/notify"
)

// Property names published by ServerWrapper.
const (
	PropDebug                      = "debug"
	PropSecure                     = "secure"
	PropDeployDirectory            = "deployDirectory"
	PropInstanceDirectory          = "instanceDirectory"
	PropTestEnvironment            = "testEnvironment"
	PropModulesReloadableByDefault = "modulesReloadableByDefault"
	PropSaveSeparateContextFiles   = "saveSeparateContextFiles"
	PropServeModulesWithoutPublish = "serveModulesWithoutPublish"
)

// ServerSettings is the plain value form of a ServerWrapper.
type ServerSettings struct {
	Debug                      bool   `toml:"debug" yaml:"debug"`
	Secure                     bool   `toml:"secure" yaml:"secure"`
	DeployDirectory            string `toml:"deployDirectory,omitempty" yaml:"deployDirectory,omitempty"`
	InstanceDirectory          string `toml:"instanceDirectory,omitempty" yaml:"instanceDirectory,omitempty"`
	TestEnvironment            bool   `toml:"testEnvironment" yaml:"testEnvironment"`
	ModulesReloadableByDefault bool   `toml:"modulesReloadableByDefault" yaml:"modulesReloadableByDefault"`
	SaveSeparateContextFiles   bool   `toml:"saveSeparateContextFiles" yaml:"saveSeparateContextFiles"`
	ServeModulesWithoutPublish bool   `toml:"serveModulesWithoutPublish" yaml:"serveModulesWithoutPublish"`
}

// DefaultServerSettings mirrors a freshly created server: modules reload by
// default, everything else off.
func DefaultServerSettings() ServerSettings {
	return ServerSettings{ModulesReloadableByDefault: true}
}

// ServerWrapper holds the scalar settings of one server.
type ServerWrapper struct {
	s        ServerSettings
	notifier *notify.Notifier
}

// NewServerWrapper creates a wrapper with default settings.
func NewServerWrapper() *ServerWrapper {
	return &ServerWrapper{s: DefaultServerSettings(), notifier: notify.New()}
}

// Notifier returns the change notifier.
func (w *ServerWrapper) Notifier() *notify.Notifier {
	return w.notifier
}

// Snapshot returns the current settings by value.
func (w *ServerWrapper) Snapshot() ServerSettings {
	return w.s
}

// Apply replaces all settings at once without publishing changes.
func (w *ServerWrapper) Apply(s ServerSettings) {
	w.s = s
}

// Clone returns a copy with a fresh notifier.
func (w *ServerWrapper) Clone() *ServerWrapper {
	return &ServerWrapper{s: w.s, notifier: notify.New()}
}

func (w *ServerWrapper) publish(prop string, old, v any) {
	w.notifier.Notify(notify.Change{Path: prop, Type: notify.ChangeSet, Index: -1, OldValue: old, NewValue: v})
}

// Debug reports whether the server launches in debug mode.
func (w *ServerWrapper) Debug() bool { return w.s.Debug }

// SetDebug sets debug mode.
func (w *ServerWrapper) SetDebug(v bool) {
	old := w.s.Debug
	w.s.Debug = v
	w.publish(PropDebug, old, v)
}

// Secure reports whether the security manager is enabled.
func (w *ServerWrapper) Secure() bool { return w.s.Secure }

// SetSecure sets secure mode.
func (w *ServerWrapper) SetSecure(v bool) {
	old := w.s.Secure
	w.s.Secure = v
	w.publish(PropSecure, old, v)
}

// DeployDirectory is where modules are published.
func (w *ServerWrapper) DeployDirectory() string { return w.s.DeployDirectory }

// SetDeployDirectory sets the deploy directory.
func (w *ServerWrapper) SetDeployDirectory(v string) {
	old := w.s.DeployDirectory
	w.s.DeployDirectory = v
	w.publish(PropDeployDirectory, old, v)
}

// InstanceDirectory is the server's runtime base directory.
func (w *ServerWrapper) InstanceDirectory() string { return w.s.InstanceDirectory }

// SetInstanceDirectory sets the instance directory.
func (w *ServerWrapper) SetInstanceDirectory(v string) {
	old := w.s.InstanceDirectory
	w.s.InstanceDirectory = v
	w.publish(PropInstanceDirectory, old, v)
}

// TestEnvironment reports whether the server runs from a workspace copy.
func (w *ServerWrapper) TestEnvironment() bool { return w.s.TestEnvironment }

// SetTestEnvironment sets test environment mode.
func (w *ServerWrapper) SetTestEnvironment(v bool) {
	old := w.s.TestEnvironment
	w.s.TestEnvironment = v
	w.publish(PropTestEnvironment, old, v)
}

// ModulesReloadableByDefault is the default reloadable flag for new modules.
func (w *ServerWrapper) ModulesReloadableByDefault() bool { return w.s.ModulesReloadableByDefault }

// SetModulesReloadableByDefault sets the default reloadable flag.
func (w *ServerWrapper) SetModulesReloadableByDefault(v bool) {
	old := w.s.ModulesReloadableByDefault
	w.s.ModulesReloadableByDefault = v
	w.publish(PropModulesReloadableByDefault, old, v)
}

// SaveSeparateContextFiles reports whether contexts are written to their own
// files instead of the main configuration.
func (w *ServerWrapper) SaveSeparateContextFiles() bool { return w.s.SaveSeparateContextFiles }

// SetSaveSeparateContextFiles sets separate context file mode.
func (w *ServerWrapper) SetSaveSeparateContextFiles(v bool) {
	old := w.s.SaveSeparateContextFiles
	w.s.SaveSeparateContextFiles = v
	w.publish(PropSaveSeparateContextFiles, old, v)
}

// ServeModulesWithoutPublish reports whether modules are served in place.
func (w *ServerWrapper) ServeModulesWithoutPublish() bool { return w.s.ServeModulesWithoutPublish }

// SetServeModulesWithoutPublish sets serve-without-publish mode.
func (w *ServerWrapper) SetServeModulesWithoutPublish(v bool) {
	old := w.s.ServeModulesWithoutPublish
	w.s.ServeModulesWithoutPublish = v
	w.publish(PropServeModulesWithoutPublish, old, v)
}
