// Package settings holds the tool's own settings, read from an optional
// TOML file and overridden by environment variables.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/territorium/servertools/internal/logging"
)

// EnvPrefix is the prefix of settings environment variables.
const EnvPrefix = "SRVCONF_"

// Settings configures srvconf.
type Settings struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"logLevel"`
	// HistoryLimit bounds the undo stack.
	HistoryLimit int `toml:"historyLimit"`
	// StorePath is the snapshot database.
	StorePath string `toml:"storePath"`
	// MetricsAddr enables the metrics endpoint when non-empty.
	MetricsAddr string `toml:"metricsAddr"`
	// Format is the default output format for documents.
	Format string `toml:"format"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		LogLevel:     "info",
		HistoryLimit: 1000,
		StorePath:    filepath.Join(defaultDataDir(), "snapshots.db"),
		Format:       "toml",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "srvconf")
	}
	return ".srvconf"
}

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "settings.toml")
}

// Level returns the parsed log level.
func (s Settings) Level() logging.Level {
	return logging.ParseLevel(s.LogLevel)
}

// Validate checks that values are usable.
func (s Settings) Validate() error {
	var errs []error
	if s.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("historyLimit must be positive, got %d", s.HistoryLimit))
	}
	switch strings.ToLower(s.Format) {
	case "toml", "yaml", "properties":
	default:
		errs = append(errs, fmt.Errorf("unknown format %q", s.Format))
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", s.LogLevel))
	}
	return errors.Join(errs...)
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Settings, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return s, fmt.Errorf("reading settings %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &s); err != nil {
				return s, fmt.Errorf("parsing settings %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&s, lookup); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		s.LogLevel = v
	}
	if v, ok := lookup(EnvPrefix + "HISTORY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHISTORY_LIMIT: %w", EnvPrefix, err)
		}
		s.HistoryLimit = n
	}
	if v, ok := lookup(EnvPrefix + "STORE_PATH"); ok {
		s.StorePath = v
	}
	if v, ok := lookup(EnvPrefix + "METRICS_ADDR"); ok {
		s.MetricsAddr = v
	}
	if v, ok := lookup(EnvPrefix + "FORMAT"); ok {
		s.Format = v
	}
	return nil
}
