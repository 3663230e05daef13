package props

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/territorium/servertools/internal/logging"
)

// Parser turns property text into Sink calls.
type Parser struct {
	comments []string
	logger   *logging.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithCommentPrefixes treats lines starting with any prefix (after leading
// whitespace) as comments. There is no comment syntax by default.
func WithCommentPrefixes(prefixes ...string) Option {
	return func(p *Parser) {
		for _, prefix := range prefixes {
			if prefix != "" {
				p.comments = append(p.comments, prefix)
			}
		}
	}
}

// WithLogger logs skipped lines at debug level.
func WithLogger(l *logging.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l.WithComponent("props")
		}
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: logging.Null()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads r to the end. Pairs already delivered to sink stay there if
// reading fails.
func Parse(r io.Reader, sink Sink, opts ...Option) error {
	return NewParser(opts...).Parse(r, sink)
}

// ParseString parses s into a new Properties.
func ParseString(s string, opts ...Option) *Properties {
	p := NewProperties()
	// A strings.Reader cannot fail.
	_ = NewParser(opts...).Parse(strings.NewReader(s), p)
	return p
}

// Parse reads r line by line and delivers pairs to sink.
func (p *Parser) Parse(r io.Reader, sink Sink) error {
	br := bufio.NewReader(r)
	section := ""
	lineNo := 0

	for {
		raw, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return &ReadError{Line: lineNo + 1, Err: err}
		}
		if raw == "" && err != nil {
			return nil
		}
		lineNo++

		line := strings.TrimSuffix(raw, "\n")
		line = strings.TrimSuffix(line, "\r")
		section = p.parseLine(lineNo, line, section, sink)

		if err != nil {
			return nil
		}
	}
}

// parseLine handles one line and returns the section in effect afterwards.
func (p *Parser) parseLine(lineNo int, line, section string, sink Sink) string {
	start := skipSpace(line, 0)
	if start == len(line) {
		return section
	}
	rest := line[start:]
	for _, prefix := range p.comments {
		if strings.HasPrefix(rest, prefix) {
			return section
		}
	}

	if line[start] == '[' {
		end := indexUnescaped(line, start+1, func(c byte) bool { return c == ']' })
		if end < 0 {
			p.logger.Debug("line %d: unterminated section header skipped", lineNo)
			return section
		}
		return strings.TrimSpace(unescape(line[start+1 : end]))
	}

	colonEnds := indexUnescaped(line, start, func(c byte) bool { return c == '=' }) < 0
	keyEnd := indexUnescaped(line, start, func(c byte) bool {
		return c == '=' || isSpace(c) || (colonEnds && c == ':')
	})
	if keyEnd < 0 {
		keyEnd = len(line)
	}

	valStart := keyEnd
	if valStart < len(line) {
		if isSpace(line[valStart]) {
			valStart = skipSpace(line, valStart)
			if valStart < len(line) && (line[valStart] == '=' || line[valStart] == ':') {
				valStart++
			}
		} else {
			valStart++
		}
		valStart = skipSpace(line, valStart)
	}

	key := unescape(line[start:keyEnd])
	value := unescape(line[valStart:trimTrailingSpace(line, valStart)])
	if key == "" || value == "" {
		p.logger.Debug("line %d: empty key or value skipped", lineNo)
		return section
	}

	if section != "" {
		key = section + "." + key
	}
	sink.Set(foldKey(key), value)
	return section
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\r'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

// indexUnescaped returns the index of the first byte at or after from that
// matches and is not preceded by an escaping backslash, or -1.
func indexUnescaped(s string, from int, match func(byte) bool) int {
	escaped := false
	for i := from; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if match(c) {
			return i
		}
	}
	return -1
}

// trimTrailingSpace returns the end of s after dropping trailing whitespace
// that is not escaped. It never goes below from.
func trimTrailingSpace(s string, from int) int {
	end := len(s)
	for end > from && isSpace(s[end-1]) {
		backslashes := 0
		for j := end - 2; j >= from && s[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 1 {
			break
		}
		end--
	}
	return end
}

// unescape resolves backslash escapes.
func unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+5 <= len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func foldKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == ':' {
			return '.'
		}
		return r
	}, key)
}
