package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a file extension or format name no codec
// handles.
var ErrUnknownFormat = errors.New("unknown document format")

// Format names.
const (
	FormatTOML       = "toml"
	FormatYAML       = "yaml"
	FormatProperties = "properties"
)

// Codec reads and writes Documents in one format.
type Codec interface {
	// Format returns the format name.
	Format() string
	// Decode reads a document. Syntax errors are *ParseError.
	Decode(r io.Reader) (Document, error)
	// Encode writes a document.
	Encode(w io.Writer, d Document) error
}

// CodecFor selects a codec by file extension.
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOMLCodec{}, nil
	case ".yaml", ".yml":
		return YAMLCodec{}, nil
	case ".properties", ".ini", ".conf":
		return PropertiesCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// CodecByName selects a codec by format name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case FormatTOML:
		return TOMLCodec{}, nil
	case FormatYAML, "yml":
		return YAMLCodec{}, nil
	case FormatProperties:
		return PropertiesCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

// TOMLCodec handles TOML documents.
type TOMLCodec struct{}

// Format implements Codec.
func (TOMLCodec) Format() string { return FormatTOML }

// Decode implements Codec.
func (TOMLCodec) Decode(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	d := NewDocument()
	if err := toml.Unmarshal(data, &d); err != nil {
		perr := &ParseError{Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return Document{}, perr
	}
	return d, nil
}

// Encode implements Codec.
func (TOMLCodec) Encode(w io.Writer, d Document) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(d)
}

// YAMLCodec handles YAML documents.
type YAMLCodec struct{}

// Format implements Codec.
func (YAMLCodec) Format() string { return FormatYAML }

var yamlLine = regexp.MustCompile(`line (\d+)`)

// Decode implements Codec.
func (YAMLCodec) Decode(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	d := NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return d, nil
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		perr := &ParseError{Message: err.Error(), Err: err}
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			perr.Line, _ = strconv.Atoi(m[1])
		}
		return Document{}, perr
	}
	return d, nil
}

// Encode implements Codec.
func (YAMLCodec) Encode(w io.Writer, d Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
