package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverTOML = `
[server]
debug = false

[[port]]
id = "http"
port = 8080

[[webModule]]
path = "/shop"
docBase = "shop"
`

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, dir: t.TempDir()}
}

func (c *cli) file(name, content string) string {
	c.t.Helper()
	path := filepath.Join(c.dir, name)
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (c *cli) runContext(ctx context.Context, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(append([]string{
		"--settings", filepath.Join(c.dir, "settings.toml"),
		"--store", filepath.Join(c.dir, "snapshots.db"),
		"--log-level", "error",
	}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (c *cli) run(args ...string) (string, error) {
	return c.runContext(context.Background(), args...)
}

func TestParse(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.properties", `
# comment
[port]
http = 8080
http.name : HTTP
server.debug true
`)
	out, err := c.run("parse", path, "--comment-prefix", "#")
	require.NoError(t, err)
	assert.Equal(t, "port.http=8080\nport.http.name=HTTP\nport.server.debug=true\n", out)

	out, err = c.run("parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "#=comment\n")

	_, err = c.run("parse", filepath.Join(c.dir, "missing.properties"))
	assert.Error(t, err)
}

func TestShow(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)

	out, err := c.run("show", path, "--format", "properties")
	require.NoError(t, err)
	assert.Contains(t, out, "port.http=8080\n")
	assert.Contains(t, out, "webModule.0.path=/shop\n")

	out, err = c.run("show", path, "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "path: /shop")

	bad := c.file("bad.toml", "[[port]]\nid = \"http\"\nport = 1\n[[port]]\nid = \"http\"\nport = 2\n")
	_, err = c.run("show", bad)
	assert.ErrorContains(t, err, "duplicate server port")
}

func TestEditWritesBack(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)

	_, err := c.run("edit", path,
		"--set-port", "http=8081",
		"--add-module", "/admin=admin",
		"--add-mime", "css=text/css",
		"--debug",
	)
	require.NoError(t, err)

	out, err := c.run("show", path, "-f", "properties")
	require.NoError(t, err)
	assert.Contains(t, out, "port.http=8081\n")
	assert.Contains(t, out, "webModule.1.path=/admin\n")
	assert.Contains(t, out, "webModule.1.reloadable=true\n")
	assert.Contains(t, out, "mime.css=text/css\n")
	assert.Contains(t, out, "server.debug=true\n")
}

func TestEditUndoAndStdout(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)

	out, err := c.run("edit", path, "--remove-module", "0", "--set-port", "http=9000", "--undo", "1", "-o", "-", "-f", "properties")
	require.NoError(t, err)
	assert.Contains(t, out, "port.http=8080\n")
	assert.NotContains(t, out, "webModule.0.path")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, serverTOML, string(data), "stdout output leaves the file alone")

	_, err = c.run("edit", path, "--set-port", "http=9000", "--undo", "2")
	assert.ErrorContains(t, err, "only 1 edits to undo")
}

func TestEditErrors(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)

	for _, args := range [][]string{
		{"--set-port", "http"},
		{"--set-port", "http=lots"},
		{"--set-port", "https=443"},
		{"--remove-module", "3"},
		{"--add-mime", "=text/css"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := c.run(append([]string{"edit", path}, args...)...)
			assert.Error(t, err)
		})
	}
}

func TestEditKeepsEnvironmentOutOfFile(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)
	t.Setenv("SRVCONF_PORT_HTTP", "9999")
	t.Setenv("SRVCONF_SERVER_SECURE", "true")

	out, err := c.run("show", path, "-f", "properties")
	require.NoError(t, err)
	assert.Contains(t, out, "port.http=9999\n")
	assert.Contains(t, out, "server.secure=true\n")

	_, err = c.run("edit", path, "--add-mime", "css=text/css")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "css")
	assert.Contains(t, string(data), "8080")
	assert.NotContains(t, string(data), "9999")
	assert.NotContains(t, string(data), "secure = true")

	id, err := c.run("snapshot", "save", "prod", path, "-f", "properties")
	require.NoError(t, err)
	out, err = c.run("snapshot", "restore", strings.TrimSpace(id))
	require.NoError(t, err)
	assert.Contains(t, out, "port.http=8080\n")
}

func TestEditWritesMetricsFile(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)
	metricsFile := filepath.Join(c.dir, "srvconf.prom")

	_, err := c.run("edit", path, "--set-port", "http=8081", "--add-mime", "css=text/css", "--undo", "1", "--metrics-file", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `servertools_command_steps_total{kind="ModifyPort",op="execute",result="ok"} 1`)
	assert.Contains(t, text, `servertools_command_steps_total{kind="ModifyPort",op="undo",result="ok"} 1`)
	assert.Contains(t, text, `servertools_command_steps_total{kind="AddMimeMapping",op="execute",result="ok"} 1`)

	_, err = c.run("edit", path, "--set-port", "https=443", "--metrics-file", metricsFile)
	require.Error(t, err)
	data, err = os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `servertools_command_steps_total{kind="ModifyPort",op="execute",result="error"} 1`)
}

func TestEditToOtherFormat(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)
	out := filepath.Join(c.dir, "server.yaml")

	_, err := c.run("edit", path, "--secure", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "secure: true")
}

func TestSnapshots(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)

	id, err := c.run("snapshot", "save", "prod", path, "-f", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "1\n", id)

	_, err = c.run("edit", path, "--set-port", "http=8443", "--snapshot", "prod")
	require.NoError(t, err)

	out, err := c.run("snapshot", "list", "prod")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "2 "), lines[1])

	out, err = c.run("snapshot", "restore", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 8080")

	restored := filepath.Join(c.dir, "restored.properties")
	_, err = c.run("snapshot", "restore", "2", "-o", restored)
	require.NoError(t, err)
	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port.http=8443\n")

	require.NoError(t, func() error { _, err := c.run("snapshot", "delete", "1"); return err }())
	_, err = c.run("snapshot", "restore", "1")
	assert.ErrorContains(t, err, "not found")
	_, err = c.run("snapshot", "delete", "zero")
	assert.ErrorContains(t, err, "invalid snapshot id")
}

func TestWatchStopsOnCancel(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.runContext(ctx, "watch", path)
	assert.NoError(t, err)

	_, err = c.run("watch", filepath.Join(c.dir, "missing.toml"))
	assert.Error(t, err)
}

func TestInvalidSettings(t *testing.T) {
	c := newCLI(t)
	path := c.file("server.toml", serverTOML)
	_, err := c.run("--log-level", "loud", "show", path)
	assert.ErrorContains(t, err, "unknown log level")
}
