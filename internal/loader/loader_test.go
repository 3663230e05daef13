package loader

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/territorium/servertools/internal/model"
	"github.com/territorium/servertools/internal/notify"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) WriteFile(path string, data []byte, _ fs.FileMode) error {
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

const sampleTOML = `
[server]
debug = true
deployDirectory = "/srv/deploy"

[[port]]
id = "http"
name = "HTTP"
protocol = "HTTP/1.1"
port = 8080

[[port]]
id = "ajp"
port = 8009

[[webModule]]
path = "/shop"
docBase = "shop"
reloadable = true

[[webModule]]
path = "/admin"
docBase = "admin"

[[mimeMapping]]
extension = "css"
mimeType = "text/css"
`

func sampleDocument() Document {
	d := NewDocument()
	d.Server.Debug = true
	d.Server.DeployDirectory = "/srv/deploy"
	d.Ports = []model.ServerPort{
		{ID: "ajp", Port: 8009},
		{ID: "http", Name: "HTTP", Protocol: "HTTP/1.1", Port: 8080},
	}
	d.WebModules = []model.WebModule{
		{Path: "/shop", DocumentBase: "shop", Reloadable: true},
		{Path: "/admin", DocumentBase: "admin"},
	}
	d.MimeMappings = []model.MimeMapping{
		{Extension: "css", MimeType: "text/css"},
		{Extension: "html", MimeType: "text/html"},
	}
	return d
}

func TestLoadTOML(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/srv/server.toml", sampleTOML)

	cfg, w, err := New(WithFS(memfs)).Load("/srv/server.toml")
	require.NoError(t, err)

	assert.True(t, w.Debug())
	assert.True(t, w.ModulesReloadableByDefault(), "unset settings keep their defaults")
	assert.Equal(t, "/srv/deploy", w.DeployDirectory())

	http, err := cfg.ServerPort("http")
	require.NoError(t, err)
	assert.Equal(t, model.ServerPort{ID: "http", Name: "HTTP", Protocol: "HTTP/1.1", Port: 8080}, http)

	modules := cfg.WebModules()
	require.Len(t, modules, 2)
	assert.Equal(t, "/shop", modules[0].Path)
	assert.True(t, modules[0].Reloadable)
	assert.NotEmpty(t, modules[0].Key)
	assert.Equal(t, 1, cfg.MimeMappingCount())
}

func TestLoadPublishesNothing(t *testing.T) {
	cfg := model.NewConfiguration()
	w := model.NewServerWrapper()
	calls := 0
	cfg.Notifier().Subscribe(func(notify.Change) { calls++ })

	require.NoError(t, sampleDocument().ApplyTo(cfg, w))
	assert.Zero(t, calls)
	assert.Equal(t, 2, cfg.WebModuleCount())
}

func TestTOMLParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[server]\ndebug = maybe\n")

	_, _, err := New(WithFS(memfs)).Load("/bad.toml")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "/bad.toml", perr.Path)
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, err.Error(), "parse error in /bad.toml at line 2")
}

func TestYAMLParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.yaml", "server:\n  debug: [unclosed\n")

	_, err := New(WithFS(memfs)).LoadDocument("/bad.yaml")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "/bad.yaml", perr.Path)
}

func TestInvalidDocumentContent(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/dup.toml", `
[[port]]
id = "http"
port = 80

[[port]]
id = "http"
port = 81
`)
	_, _, err := New(WithFS(memfs)).Load("/dup.toml")
	assert.ErrorIs(t, err, model.ErrDuplicatePort)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := New(WithFS(NewMemFS())).Load("/nope.toml")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCodecFor(t *testing.T) {
	tests := []struct {
		path   string
		format string
	}{
		{"a.toml", FormatTOML},
		{"a.TOML", FormatTOML},
		{"a.yaml", FormatYAML},
		{"a.yml", FormatYAML},
		{"a.properties", FormatProperties},
		{"a.ini", FormatProperties},
		{"a.conf", FormatProperties},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, err := CodecFor(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, c.Format())
		})
	}

	_, err := CodecFor("a.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = CodecByName("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{FormatTOML, FormatYAML, FormatProperties} {
		t.Run(format, func(t *testing.T) {
			want := sampleDocument()
			data, err := Encode(format, want)
			require.NoError(t, err)

			got, err := Decode(format, data)
			require.NoError(t, err)

			wantCfg, wantW, err := want.Build()
			require.NoError(t, err)
			gotCfg, gotW, err := got.Build()
			require.NoError(t, err)
			assert.True(t, wantCfg.SameContent(gotCfg), "decoded:\n%s", data)
			assert.Equal(t, wantW.Snapshot(), gotW.Snapshot())
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	memfs := NewMemFS()
	l := New(WithFS(memfs))

	cfg, w, err := sampleDocument().Build()
	require.NoError(t, err)
	require.NoError(t, l.Save("/out.yaml", cfg, w))
	assert.Contains(t, string(memfs.files["/out.yaml"]), "docBase: shop")

	cfg2, w2, err := l.Load("/out.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.SameContent(cfg2))
	assert.False(t, cfg.Equal(cfg2), "reloaded elements get fresh keys")
	assert.Equal(t, w.Snapshot(), w2.Snapshot())
}

func TestDocumentOfDropsKeys(t *testing.T) {
	cfg, w, err := sampleDocument().Build()
	require.NoError(t, err)

	d := DocumentOf(cfg, w)
	for _, m := range d.WebModules {
		assert.Empty(t, m.Key)
	}
	for _, m := range d.MimeMappings {
		assert.Empty(t, m.Key)
	}
}

func TestPropertiesDecode(t *testing.T) {
	input := strings.Join([]string{
		"server.debug=true",
		"server.modulesReloadableByDefault = off",
		"port.https=8443",
		"port.http=8080",
		"port.http.name=HTTP",
		"mime.js=text/javascript",
		"mime.css=text/css",
		"webModule.10.path=/ten",
		"webModule.2.path=/two",
		"webModule.2.docBase=two",
		"webModule.2.reloadable=yes",
		"[server]",
		"deployDirectory=C:\\\\deploy",
		"other.key=ignored",
	}, "\n")

	d, err := PropertiesCodec{}.Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.True(t, d.Server.Debug)
	assert.False(t, d.Server.ModulesReloadableByDefault)
	assert.Equal(t, `C:\deploy`, d.Server.DeployDirectory)

	require.Len(t, d.Ports, 2)
	assert.Equal(t, "https", d.Ports[0].ID)
	assert.Equal(t, model.ServerPort{ID: "http", Name: "HTTP", Port: 8080}, d.Ports[1])

	require.Len(t, d.MimeMappings, 2)
	assert.Equal(t, "js", d.MimeMappings[0].Extension)

	require.Len(t, d.WebModules, 2)
	assert.Equal(t, model.WebModule{Path: "/two", DocumentBase: "two", Reloadable: true}, d.WebModules[0])
	assert.Equal(t, "/ten", d.WebModules[1].Path)
}

func TestPropertiesErrors(t *testing.T) {
	tests := []struct {
		name  string
		codec PropertiesCodec
		input string
		msg   string
	}{
		{"bad port", PropertiesCodec{}, "port.http=eighty", `port.http: invalid port "eighty"`},
		{"port out of range", PropertiesCodec{}, "port.http=70000", "invalid port"},
		{"bad bool", PropertiesCodec{}, "server.debug=perhaps", "invalid boolean"},
		{"bad module number", PropertiesCodec{}, "webModule.x.path=/x", "invalid module number"},
		{"strict unknown", PropertiesCodec{Strict: true}, "server.colour=blue", "server.colour: unknown key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(strings.NewReader(tt.input))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Message, tt.msg)
		})
	}
}

func TestPropertiesEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PropertiesCodec{}.Encode(&buf, sampleDocument()))
	out := buf.String()

	assert.Contains(t, out, "server.debug=true\n")
	assert.Contains(t, out, "port.http=8080\n")
	assert.Contains(t, out, "port.http.protocol=HTTP/1.1\n")
	assert.Contains(t, out, "webModule.0.path=/shop\n")
	assert.Contains(t, out, "mime.css=text/css\n")
}

func TestEnvOverlay(t *testing.T) {
	env := NewEnvOverlayFrom(DefaultEnvPrefix, []string{
		"PATH=/usr/bin",
		"SRVCONF_SERVER_DEBUG=false",
		"SRVCONF_SERVER_INSTANCE_DIRECTORY=/srv/inst",
		"SRVCONF_SERVER_MODULES_RELOADABLE_BY_DEFAULT=off",
		"SRVCONF_SERVER_UNKNOWN=1",
		"SRVCONF_PORT_HTTP=9090",
		"SRVCONF_PORT_NONE=1",
		"SRVCONF_LOG_LEVEL=debug",
	})

	d := sampleDocument()
	applied, err := env.Apply(&d)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"server.debug",
		"server.instanceDirectory",
		"server.modulesReloadableByDefault",
		"port.http",
	}, applied)
	assert.False(t, d.Server.Debug)
	assert.Equal(t, "/srv/inst", d.Server.InstanceDirectory)
	assert.False(t, d.Server.ModulesReloadableByDefault)
	assert.Equal(t, 9090, d.Ports[1].Port)
	assert.Len(t, d.Ports, 2)
}

func TestEnvOverlayErrors(t *testing.T) {
	d := sampleDocument()
	_, err := NewEnvOverlayFrom("X_", []string{"X_PORT_HTTP=abc"}).Apply(&d)
	assert.ErrorIs(t, err, model.ErrInvalidPort)

	_, err = NewEnvOverlayFrom("X_", []string{"X_SERVER_SECURE=sometimes"}).Apply(&d)
	assert.ErrorContains(t, err, "X_SERVER_SECURE")
}

func TestLoaderAppliesEnv(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/s.toml", sampleTOML)
	env := NewEnvOverlayFrom(DefaultEnvPrefix, []string{"SRVCONF_SERVER_SECURE=true"})

	_, w, err := New(WithFS(memfs), WithEnv(env)).Load("/s.toml")
	require.NoError(t, err)
	assert.True(t, w.Secure())
}

func TestSnakeToCamel(t *testing.T) {
	assert.Equal(t, "debug", snakeToCamel("DEBUG"))
	assert.Equal(t, "deployDirectory", snakeToCamel("DEPLOY_DIRECTORY"))
	assert.Equal(t, "serveModulesWithoutPublish", snakeToCamel("SERVE_MODULES_WITHOUT_PUBLISH"))
}
