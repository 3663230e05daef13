// Package loader reads and writes server configuration documents.
//
// Documents can be TOML, YAML or flat properties files; the codec is chosen
// by file extension. Environment variables can override settings after a
// document is decoded.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/territorium/servertools/internal/logging"
	"github.com/territorium/servertools/internal/model"
)

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces the file at path.
	WriteFile(path string, data []byte, perm fs.FileMode) error
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a temporary file next to path and renames it
// into place.
func (OSFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// ParseError represents an error while parsing a configuration document.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Option configures a Loader.
type Option func(*Loader)

// WithFS sets the file system.
func WithFS(fsys FileSystem) Option {
	return func(l *Loader) {
		if fsys != nil {
			l.fs = fsys
		}
	}
}

// WithEnv applies env to every loaded document.
func WithEnv(env *EnvOverlay) Option {
	return func(l *Loader) { l.env = env }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}

// Loader reads and writes documents through a FileSystem.
type Loader struct {
	fs     FileSystem
	env    *EnvOverlay
	logger *logging.Logger
}

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		fs:     DefaultFS(),
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDocument reads and decodes the document at path, then applies the
// environment overlay.
func (l *Loader) LoadDocument(path string) (Document, error) {
	codec, err := CodecFor(path)
	if err != nil {
		return Document{}, err
	}
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	doc, err := codec.Decode(bytes.NewReader(data))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return Document{}, err
	}

	if l.env != nil {
		applied, err := l.env.Apply(&doc)
		if err != nil {
			return Document{}, err
		}
		for _, name := range applied {
			l.logger.Debug("%s overridden from environment", name)
		}
	}

	l.logger.WithFields(map[string]any{
		"format":  codec.Format(),
		"ports":   len(doc.Ports),
		"modules": len(doc.WebModules),
	}).Info("loaded %s", path)
	return doc, nil
}

// Load reads the document at path and builds its aggregates.
func (l *Loader) Load(path string) (*model.Configuration, *model.ServerWrapper, error) {
	doc, err := l.LoadDocument(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, w, err := doc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, w, nil
}

// SaveDocument encodes doc in the format chosen by path's extension.
func (l *Loader) SaveDocument(path string, doc Document) error {
	codec, err := CodecFor(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := l.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	l.logger.Info("saved %s", path)
	return nil
}

// Save writes the state of cfg and w to path.
func (l *Loader) Save(path string, cfg *model.Configuration, w *model.ServerWrapper) error {
	return l.SaveDocument(path, DocumentOf(cfg, w))
}

// Encode renders doc with the named format.
func Encode(format string, doc Document) ([]byte, error) {
	codec, err := CodecByName(format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses data with the named format.
func Decode(format string, data []byte) (Document, error) {
	codec, err := CodecByName(format)
	if err != nil {
		return Document{}, err
	}
	return codec.Decode(bytes.NewReader(data))
}
