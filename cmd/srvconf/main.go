// Package main is the entry point for the srvconf tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/territorium/servertools/internal/history"
	"github.com/territorium/servertools/internal/loader"
	"github.com/territorium/servertools/internal/logging"
	"github.com/territorium/servertools/internal/session"
	"github.com/territorium/servertools/internal/settings"
	"github.com/territorium/servertools/internal/store"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app carries what every subcommand shares.
type app struct {
	settingsPath string
	logLevel     string
	storePath    string

	settings settings.Settings
	logger   *logging.Logger
	errOut   io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{errOut: errOut, logger: logging.Null()}

	root := &cobra.Command{
		Use:   "srvconf",
		Short: "Inspect and edit server configuration documents",
		Long: `srvconf reads server configuration documents (TOML, YAML or properties),
edits them with undoable commands, keeps snapshots in a local database
and watches documents for changes.

Examples:
  srvconf show server.toml --format yaml
  srvconf edit server.toml --set-port http=8081 --add-module /shop=shop
  srvconf snapshot save prod server.toml
  srvconf watch server.toml --metrics-addr :9100`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.settingsPath, "settings", settings.DefaultPath(), "Path to settings file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.storePath, "store", "", "Path to snapshot database")

	root.AddCommand(
		parseCmd(a),
		showCmd(a),
		editCmd(a),
		snapshotCmd(a),
		watchCmd(a),
	)
	return root
}

// setup loads settings and applies flag overrides.
func (a *app) setup() error {
	s, err := settings.Load(a.settingsPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		s.LogLevel = a.logLevel
	}
	if a.storePath != "" {
		s.StorePath = a.storePath
	}
	if err := s.Validate(); err != nil {
		return err
	}
	a.settings = s

	cfg := logging.DefaultConfig()
	cfg.Level = s.Level()
	cfg.Output = a.errOut
	a.logger = logging.New(cfg)
	return nil
}

// loader reads documents as the server would see them, with the
// environment overlay applied.
func (a *app) loader() *loader.Loader {
	return loader.New(
		loader.WithEnv(loader.NewEnvOverlay(loader.DefaultEnvPrefix)),
		loader.WithLogger(a.logger.WithComponent("loader")),
	)
}

// fileLoader reads documents exactly as stored. Anything that writes a
// document back uses it so environment values never end up in the file.
func (a *app) fileLoader() *loader.Loader {
	return loader.New(loader.WithLogger(a.logger.WithComponent("loader")))
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.settings.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	return st, nil
}

func (a *app) sessionOptions(extra ...session.Option) []session.Option {
	opts := []session.Option{
		session.WithLogger(a.logger.WithComponent("session")),
		session.WithHistoryOptions(history.WithMaxEntries(a.settings.HistoryLimit)),
	}
	return append(opts, extra...)
}

// format returns name, or the configured default when name is empty.
func (a *app) format(name string) string {
	if name == "" {
		return a.settings.Format
	}
	return strings.ToLower(name)
}

// writeDocument encodes doc in format to w.
func writeDocument(w io.Writer, format string, doc loader.Document) error {
	data, err := loader.Encode(format, doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
