package loader

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/territorium/servertools/internal/model"
	"github.com/territorium/servertools/internal/props"
)

// PropertiesCodec maps flat key=value documents onto a Document.
//
//	server.debug=true
//	port.http=8080
//	port.http.name=HTTP
//	port.http.protocol=HTTP/1.1
//	mime.css=text/css
//	webModule.0.path=/shop
//	webModule.0.docBase=shop
//	webModule.0.reloadable=true
//
// Ports and MIME mappings keep the order in which their keys first
// appear; web modules are ordered by their number. Encoding writes keys
// sorted, so MIME mappings come back ordered by extension.
type PropertiesCodec struct {
	// Strict rejects keys outside the groups above.
	Strict bool
	// Options are passed to the line parser.
	Options []props.Option
}

// Format implements Codec.
func (PropertiesCodec) Format() string { return FormatProperties }

type binding struct {
	doc    Document
	strict bool
	err    error

	ports   map[string]int
	mimes   map[string]int
	modules map[int]*model.WebModule
}

// Decode implements Codec.
func (c PropertiesCodec) Decode(r io.Reader) (Document, error) {
	b := &binding{
		doc:     NewDocument(),
		strict:  c.Strict,
		ports:   make(map[string]int),
		mimes:   make(map[string]int),
		modules: make(map[int]*model.WebModule),
	}
	if err := props.Parse(r, props.SinkFunc(b.set), c.Options...); err != nil {
		var rerr *props.ReadError
		if errors.As(err, &rerr) {
			return Document{}, &ParseError{Line: rerr.Line, Message: rerr.Err.Error(), Err: err}
		}
		return Document{}, err
	}
	if b.err != nil {
		return Document{}, b.err
	}

	nums := make([]int, 0, len(b.modules))
	for n := range b.modules {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		b.doc.WebModules = append(b.doc.WebModules, *b.modules[n])
	}
	return b.doc, nil
}

func (b *binding) fail(key, format string, args ...any) {
	if b.err == nil {
		b.err = &ParseError{Message: key + ": " + fmt.Sprintf(format, args...)}
	}
}

func (b *binding) set(key, value string) {
	group, rest, _ := strings.Cut(key, ".")
	switch group {
	case "server":
		ss, ok := lookupSetting(rest)
		if !ok {
			b.unknown(key)
			return
		}
		if err := ss.set(&b.doc.Server, value); err != nil {
			b.fail(key, "%v", err)
		}
	case "port":
		b.setPort(key, rest, value)
	case "mime":
		if rest == "" {
			b.unknown(key)
			return
		}
		if i, ok := b.mimes[rest]; ok {
			b.doc.MimeMappings[i].MimeType = value
			return
		}
		b.mimes[rest] = len(b.doc.MimeMappings)
		b.doc.MimeMappings = append(b.doc.MimeMappings, model.MimeMapping{Extension: rest, MimeType: value})
	case "webModule":
		b.setModule(key, rest, value)
	default:
		b.unknown(key)
	}
}

func (b *binding) unknown(key string) {
	if b.strict {
		b.fail(key, "unknown key")
	}
}

func (b *binding) setPort(key, rest, value string) {
	id, field, _ := strings.Cut(rest, ".")
	if id == "" {
		b.unknown(key)
		return
	}
	i, ok := b.ports[id]
	if !ok {
		i = len(b.doc.Ports)
		b.ports[id] = i
		b.doc.Ports = append(b.doc.Ports, model.ServerPort{ID: id})
	}
	p := &b.doc.Ports[i]
	switch field {
	case "":
		n, err := strconv.Atoi(value)
		if err != nil || !model.ValidPort(n) {
			b.fail(key, "invalid port %q", value)
			return
		}
		p.Port = n
	case "name":
		p.Name = value
	case "protocol":
		p.Protocol = value
	default:
		b.unknown(key)
	}
}

func (b *binding) setModule(key, rest, value string) {
	num, field, _ := strings.Cut(rest, ".")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		b.fail(key, "invalid module number %q", num)
		return
	}
	m, ok := b.modules[n]
	if !ok {
		m = &model.WebModule{}
		b.modules[n] = m
	}
	switch field {
	case "path":
		m.Path = value
	case "docBase":
		m.DocumentBase = value
	case "reloadable":
		v, err := parseBool(value)
		if err != nil {
			b.fail(key, "%v", err)
			return
		}
		m.Reloadable = v
	default:
		b.unknown(key)
	}
}

// Encode implements Codec.
func (PropertiesCodec) Encode(w io.Writer, d Document) error {
	p := props.NewProperties()
	for _, ss := range serverSettings {
		p.Set("server."+ss.name, ss.get(&d.Server))
	}
	for _, port := range d.Ports {
		p.Set("port."+port.ID, strconv.Itoa(port.Port))
		if port.Name != "" {
			p.Set("port."+port.ID+".name", port.Name)
		}
		if port.Protocol != "" {
			p.Set("port."+port.ID+".protocol", port.Protocol)
		}
	}
	for _, m := range d.MimeMappings {
		p.Set("mime."+m.Extension, m.MimeType)
	}
	for i, m := range d.WebModules {
		prefix := "webModule." + strconv.Itoa(i) + "."
		p.Set(prefix+"path", m.Path)
		p.Set(prefix+"docBase", m.DocumentBase)
		p.Set(prefix+"reloadable", strconv.FormatBool(m.Reloadable))
	}
	return props.Write(w, p)
}
