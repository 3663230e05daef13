package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/territorium/servertools/internal/model"
)

// Document is the persisted form of a server configuration.
type Document struct {
	Server       model.ServerSettings `toml:"server" yaml:"server"`
	Ports        []model.ServerPort   `toml:"port,omitempty" yaml:"port,omitempty"`
	WebModules   []model.WebModule    `toml:"webModule,omitempty" yaml:"webModule,omitempty"`
	MimeMappings []model.MimeMapping  `toml:"mimeMapping,omitempty" yaml:"mimeMapping,omitempty"`
}

// NewDocument returns a document with default server settings.
func NewDocument() Document {
	return Document{Server: model.DefaultServerSettings()}
}

// DocumentOf captures the current state of cfg and w.
func DocumentOf(cfg *model.Configuration, w *model.ServerWrapper) Document {
	d := Document{
		Server:       w.Snapshot(),
		Ports:        cfg.ServerPorts(),
		WebModules:   cfg.WebModules(),
		MimeMappings: cfg.MimeMappings(),
	}
	for i := range d.WebModules {
		d.WebModules[i].Key = ""
	}
	for i := range d.MimeMappings {
		d.MimeMappings[i].Key = ""
	}
	return d
}

// Build creates the aggregates described by d. Loading publishes no
// change notifications.
func (d Document) Build() (*model.Configuration, *model.ServerWrapper, error) {
	cfg := model.NewConfiguration()
	w := model.NewServerWrapper()
	if err := d.ApplyTo(cfg, w); err != nil {
		return nil, nil, err
	}
	return cfg, w, nil
}

// ApplyTo appends d's sequences to cfg and replaces w's settings. cfg is
// normally empty.
func (d Document) ApplyTo(cfg *model.Configuration, w *model.ServerWrapper) error {
	unmute := cfg.Notifier().Mute()
	defer unmute()

	for _, p := range d.Ports {
		if err := cfg.AddServerPort(p); err != nil {
			return fmt.Errorf("port %s: %w", p.ID, err)
		}
	}
	for _, m := range d.WebModules {
		m.Key = ""
		if _, err := cfg.AddWebModule(-1, m); err != nil {
			return fmt.Errorf("web module %s: %w", m.Path, err)
		}
	}
	for _, m := range d.MimeMappings {
		m.Key = ""
		if _, err := cfg.AddMimeMapping(-1, m); err != nil {
			return fmt.Errorf("mime mapping %s: %w", m.Extension, err)
		}
	}
	w.Apply(d.Server)
	return nil
}

// serverSetting names a ServerSettings field.
type serverSetting struct {
	name string
	str  func(*model.ServerSettings) *string
	flag func(*model.ServerSettings) *bool
}

var serverSettings = []serverSetting{
	{name: model.PropDebug, flag: func(s *model.ServerSettings) *bool { return &s.Debug }},
	{name: model.PropSecure, flag: func(s *model.ServerSettings) *bool { return &s.Secure }},
	{name: model.PropDeployDirectory, str: func(s *model.ServerSettings) *string { return &s.DeployDirectory }},
	{name: model.PropInstanceDirectory, str: func(s *model.ServerSettings) *string { return &s.InstanceDirectory }},
	{name: model.PropTestEnvironment, flag: func(s *model.ServerSettings) *bool { return &s.TestEnvironment }},
	{name: model.PropModulesReloadableByDefault, flag: func(s *model.ServerSettings) *bool { return &s.ModulesReloadableByDefault }},
	{name: model.PropSaveSeparateContextFiles, flag: func(s *model.ServerSettings) *bool { return &s.SaveSeparateContextFiles }},
	{name: model.PropServeModulesWithoutPublish, flag: func(s *model.ServerSettings) *bool { return &s.ServeModulesWithoutPublish }},
}

func lookupSetting(name string) (serverSetting, bool) {
	for _, s := range serverSettings {
		if strings.EqualFold(s.name, name) {
			return s, true
		}
	}
	return serverSetting{}, false
}

// set parses value into the field.
func (ss serverSetting) set(s *model.ServerSettings, value string) error {
	if ss.str != nil {
		*ss.str(s) = value
		return nil
	}
	b, err := parseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", ss.name, err)
	}
	*ss.flag(s) = b
	return nil
}

func (ss serverSetting) get(s *model.ServerSettings) string {
	if ss.str != nil {
		return *ss.str(s)
	}
	return strconv.FormatBool(*ss.flag(s))
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
