package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown %d", 1)
	l.Error("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 1")
	assert.Contains(t, out, "[ERROR] shown 2")
}

func TestLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Prefix: "test"})

	l.WithComponent("history").WithField("kind", "ModifyPort").Info("undo")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "test: undo")
	assert.True(t, strings.HasSuffix(line, "{component=history, kind=ModifyPort}"), line)
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Level: LevelError, Output: &buf})
	child := root.WithComponent("loader")

	root.SetLevel(LevelDebug)
	child.Debug("now visible")

	assert.Contains(t, buf.String(), "now visible")
	assert.True(t, child.Enabled(LevelDebug))
}

func TestNullLogger(t *testing.T) {
	l := Null()
	require.NotPanics(t, func() {
		l.Error("nothing")
		l.WithField("a", 1).Warn("nothing")
	})
	assert.False(t, l.Enabled(LevelError))
}

func TestSetDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	defer SetDefault(prev)

	SetDefault(New(Config{Level: LevelInfo, Output: &buf}))
	Default().Info("hello")
	assert.Contains(t, buf.String(), "hello")
}
