package props

import (
	"bufio"
	"io"
	"strings"
)

// Write emits props as flat "key=value" lines in key order. The output
// parses back to the same pairs, provided keys contain no '/' or ':'.
func Write(w io.Writer, p *Properties) error {
	bw := bufio.NewWriter(w)
	for _, k := range p.Keys() {
		if _, err := bw.WriteString(escapeKey(k) + "=" + escapeValue(p.Get(k)) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func escapeKey(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '=', ':', ' ', '\\', '[':
			if c == '[' && i > 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			writeControl(&b, c)
		}
	}
	return b.String()
}

func escapeValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == ' ' && (i == 0 || i == len(s)-1):
			// Leading and trailing blanks would be trimmed on read.
			b.WriteString(`\ `)
		default:
			writeControl(&b, c)
		}
	}
	return b.String()
}

func writeControl(b *strings.Builder, c byte) {
	switch c {
	case '\t':
		b.WriteString(`\t`)
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\f':
		b.WriteString(`\f`)
	default:
		b.WriteByte(c)
	}
}
