// Package props parses line-oriented key/value text with INI-style
// sections into a flat, dot-namespaced property map.
//
// # Format
//
//	[server]
//	debug = true
//	deploy\ dir: /srv/webapps
//	port.http 8080
//
// Each line is either a section header or a key/value pair. The key ends at
// the first unescaped '=' or whitespace; ':' also ends the key when the line
// contains no unescaped '='. Inside a section the stored key is
// "section.key". '/' and ':' in the stored key are folded to '.', so the
// example above yields:
//
//	server.debug       = true
//	server.deploy dir  = /srv/webapps
//	server.port.http   = 8080
//
// A backslash escapes the next character. Lines with an empty key or value
// are skipped; malformed lines never produce an error.
package props

import (
	"errors"
	"fmt"
	"sort"
)

// ErrRead is matched by errors from the underlying reader.
var ErrRead = errors.New("read properties")

// ReadError wraps an I/O failure from the input stream.
type ReadError struct {
	// Line is the 1-based line that could not be read.
	Line int
	// Err is the reader's error.
	Err error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("read properties at line %d: %v", e.Line, e.Err)
}

// Unwrap returns the reader's error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is matches ErrRead.
func (e *ReadError) Is(target error) bool {
	return target == ErrRead
}

// Sink receives parsed pairs. Later keys overwrite earlier ones.
type Sink interface {
	Set(key, value string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(key, value string)

// Set calls f.
func (f SinkFunc) Set(key, value string) { f(key, value) }

// Properties is a map-backed Sink.
type Properties struct {
	m map[string]string
}

// NewProperties creates an empty property set.
func NewProperties() *Properties {
	return &Properties{m: make(map[string]string)}
}

// Set stores value under key.
func (p *Properties) Set(key, value string) {
	p.m[key] = value
}

// Get returns the value for key, or "".
func (p *Properties) Get(key string) string {
	return p.m[key]
}

// Lookup returns the value for key and whether it was present.
func (p *Properties) Lookup(key string) (string, bool) {
	v, ok := p.m[key]
	return v, ok
}

// Delete removes key.
func (p *Properties) Delete(key string) {
	delete(p.m, key)
}

// Len returns the number of keys.
func (p *Properties) Len() int {
	return len(p.m)
}

// Keys returns all keys in sorted order.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the underlying map.
func (p *Properties) Map() map[string]string {
	out := make(map[string]string, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out
}
