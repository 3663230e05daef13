package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/territorium/servertools/internal/model"
)

// DefaultEnvPrefix is the prefix of configuration environment variables.
const DefaultEnvPrefix = "SRVCONF_"

// EnvOverlay overrides document values from environment variables:
//
//	SRVCONF_SERVER_DEBUG=true
//	SRVCONF_SERVER_DEPLOY_DIRECTORY=/srv/deploy
//	SRVCONF_PORT_HTTP=8081
//
// Port variables only change ports the document already declares.
type EnvOverlay struct {
	prefix  string
	environ func() []string
}

// NewEnvOverlay reads variables with prefix from the process environment.
// The prefix should include the trailing underscore.
func NewEnvOverlay(prefix string) *EnvOverlay {
	return &EnvOverlay{prefix: prefix, environ: os.Environ}
}

// NewEnvOverlayFrom reads variables from a fixed "KEY=value" list.
func NewEnvOverlayFrom(prefix string, environ []string) *EnvOverlay {
	return &EnvOverlay{prefix: prefix, environ: func() []string { return environ }}
}

// Apply overrides d and returns the document paths it changed, in
// environment order.
func (e *EnvOverlay) Apply(d *Document) ([]string, error) {
	var applied []string
	serverPrefix := e.prefix + "SERVER_"
	portPrefix := e.prefix + "PORT_"

	for _, kv := range e.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, e.prefix) {
			continue
		}

		switch {
		case strings.HasPrefix(name, serverPrefix):
			setting := snakeToCamel(strings.TrimPrefix(name, serverPrefix))
			ss, ok := lookupSetting(setting)
			if !ok {
				continue
			}
			if err := ss.set(&d.Server, value); err != nil {
				return applied, fmt.Errorf("environment %s: %w", name, err)
			}
			applied = append(applied, "server."+ss.name)

		case strings.HasPrefix(name, portPrefix):
			id := strings.TrimPrefix(name, portPrefix)
			for i := range d.Ports {
				if !strings.EqualFold(d.Ports[i].ID, id) {
					continue
				}
				n, err := strconv.Atoi(value)
				if err != nil || !model.ValidPort(n) {
					return applied, fmt.Errorf("environment %s: %w: %q", name, model.ErrInvalidPort, value)
				}
				d.Ports[i].Port = n
				applied = append(applied, "port."+d.Ports[i].ID)
			}
		}
	}
	return applied, nil
}

// snakeToCamel converts DEPLOY_DIRECTORY to deployDirectory.
func snakeToCamel(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			b.WriteString(part)
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
