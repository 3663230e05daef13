package model

import (
	"fmt"

	"github.com/google/uuid"
)

// WebModule is a web application deployed under a context root.
type WebModule struct {
	// Key identifies the element independent of its position.
	Key string `toml:"-" yaml:"-"`
	// DocumentBase is the module's content location.
	DocumentBase string `toml:"docBase" yaml:"docBase"`
	// Path is the context root, e.g. "/shop".
	Path string `toml:"path" yaml:"path"`
	// Reloadable enables class reloading for the module.
	Reloadable bool `toml:"reloadable" yaml:"reloadable"`
}

// String returns a short description used in labels and logs.
func (m WebModule) String() string {
	return fmt.Sprintf("%s -> %s", m.Path, m.DocumentBase)
}

// sameContent compares everything except Key.
func (m WebModule) sameContent(o WebModule) bool {
	return m.DocumentBase == o.DocumentBase && m.Path == o.Path && m.Reloadable == o.Reloadable
}

// MimeMapping maps a file extension to a MIME type.
type MimeMapping struct {
	Key       string `toml:"-" yaml:"-"`
	Extension string `toml:"extension" yaml:"extension"`
	MimeType  string `toml:"mimeType" yaml:"mimeType"`
}

// String returns "ext=type".
func (m MimeMapping) String() string {
	return m.Extension + "=" + m.MimeType
}

func (m MimeMapping) sameContent(o MimeMapping) bool {
	return m.Extension == o.Extension && m.MimeType == o.MimeType
}

// ServerPort is a named listening port. ID is its stable identifier.
type ServerPort struct {
	ID       string `toml:"id" yaml:"id"`
	Name     string `toml:"name,omitempty" yaml:"name,omitempty"`
	Protocol string `toml:"protocol,omitempty" yaml:"protocol,omitempty"`
	Port     int    `toml:"port" yaml:"port"`
}

// String returns "id:port".
func (p ServerPort) String() string {
	return fmt.Sprintf("%s:%d", p.ID, p.Port)
}

// ValidPort reports whether port is a usable TCP port number.
func ValidPort(port int) bool {
	return port >= 0 && port <= 65535
}

func newKey() string {
	return uuid.NewString()
}
