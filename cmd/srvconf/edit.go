package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/territorium/servertools/internal/history"
	"github.com/territorium/servertools/internal/loader"
	"github.com/territorium/servertools/internal/metrics"
	"github.com/territorium/servertools/internal/model"
	"github.com/territorium/servertools/internal/session"
)

type editFlags struct {
	setPorts      []string
	addModules    []string
	removeModules []int
	addMimes      []string
	debug         bool
	secure        bool
	undo          int
	output        string
	format        string
	snapshot      string
	metricsFile   string
}

func editCmd(a *app) *cobra.Command {
	var f editFlags

	cmd := &cobra.Command{
		Use:   "edit FILE",
		Short: "Apply edits to a document",
		Long: `Edit loads a document, applies the requested edits as undoable commands
and writes the result. Removals run first, using the indices of the
loaded document, then additions, ports and settings. --undo reverts the
last N of those edits before writing.

The result is written back to FILE when anything changed, to OUT with -o,
or to stdout with -o -. With --metrics-file the command steps are
counted and written there in the Prometheus text format, for the node
exporter's textfile collector.

Examples:
  srvconf edit server.toml --set-port http=8081
  srvconf edit server.toml --add-module /shop=shop --add-mime css=text/css
  srvconf edit server.toml --remove-module 0 --debug=false -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []session.Option
			if f.metricsFile != "" {
				reg := prometheus.NewRegistry()
				rec, err := metrics.NewRecorder(reg)
				if err != nil {
					return err
				}
				opts = append(opts, session.WithHistoryOptions(history.WithObserver(rec)))
				defer func() {
					if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
						a.logger.Error("writing metrics: %v", err)
					}
				}()
			}
			return runEdit(cmd, a, args[0], f, opts)
		},
	}

	fl := cmd.Flags()
	fl.StringArrayVar(&f.setPorts, "set-port", nil, "Set a server port, as id=port (repeatable)")
	fl.StringArrayVar(&f.addModules, "add-module", nil, "Add a web module, as path=docBase (repeatable)")
	fl.IntSliceVar(&f.removeModules, "remove-module", nil, "Remove the web module at index (repeatable)")
	fl.StringArrayVar(&f.addMimes, "add-mime", nil, "Add a MIME mapping, as ext=type (repeatable)")
	fl.BoolVar(&f.debug, "debug", false, "Set debug launch mode")
	fl.BoolVar(&f.secure, "secure", false, "Run the server with a security manager")
	fl.IntVar(&f.undo, "undo", 0, "Undo the last N edits before writing")
	fl.StringVarP(&f.output, "output", "o", "", "Write to OUT instead of FILE (- for stdout)")
	fl.StringVarP(&f.format, "format", "f", "", "Format for stdout output and snapshots")
	fl.StringVar(&f.snapshot, "snapshot", "", "Also store the result as a snapshot under this name")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write command step metrics to this file")
	return cmd
}

func runEdit(cmd *cobra.Command, a *app, path string, f editFlags, opts []session.Option) error {
	l := a.fileLoader()
	sess, err := session.Open(l, path, a.sessionOptions(opts...)...)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := applyEdits(cmd, sess, f); err != nil {
		return err
	}
	for i := 0; i < f.undo; i++ {
		if err := sess.Undo(); err != nil {
			if errors.Is(err, history.ErrNothingToUndo) {
				return fmt.Errorf("--undo %d: only %d edits to undo", f.undo, i)
			}
			return err
		}
	}

	if f.snapshot != "" {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := sess.Snapshot(cmd.Context(), st, f.snapshot, a.format(f.format)); err != nil {
			return err
		}
	}

	switch f.output {
	case "-":
		format := f.format
		if format == "" {
			codec, err := loader.CodecFor(path)
			if err != nil {
				return err
			}
			format = codec.Format()
		}
		return writeDocument(cmd.OutOrStdout(), format, sess.Document())
	case "":
		if !sess.Dirty() {
			a.logger.Info("%s unchanged", path)
			return nil
		}
		return sess.Save(l, path)
	default:
		return sess.Save(l, f.output)
	}
}

func applyEdits(cmd *cobra.Command, sess *session.Session, f editFlags) error {
	removals := slices.Clone(f.removeModules)
	slices.Sort(removals)
	removals = slices.Compact(removals)
	for i := len(removals) - 1; i >= 0; i-- {
		if err := sess.RemoveWebModule(removals[i]); err != nil {
			return fmt.Errorf("--remove-module %d: %w", removals[i], err)
		}
	}

	for _, arg := range f.addModules {
		path, docBase, err := splitPair(arg)
		if err != nil {
			return fmt.Errorf("--add-module: %w", err)
		}
		m := model.WebModule{
			Path:         path,
			DocumentBase: docBase,
			Reloadable:   sess.Server().ModulesReloadableByDefault(),
		}
		if err := sess.AddWebModule(m); err != nil {
			return fmt.Errorf("--add-module %s: %w", arg, err)
		}
	}

	for _, arg := range f.addMimes {
		ext, typ, err := splitPair(arg)
		if err != nil {
			return fmt.Errorf("--add-mime: %w", err)
		}
		if err := sess.AddMimeMapping(model.MimeMapping{Extension: ext, MimeType: typ}); err != nil {
			return fmt.Errorf("--add-mime %s: %w", arg, err)
		}
	}

	for _, arg := range f.setPorts {
		id, value, err := splitPair(arg)
		if err != nil {
			return fmt.Errorf("--set-port: %w", err)
		}
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("--set-port %s: invalid port %q", arg, value)
		}
		if err := sess.ModifyPort(id, port); err != nil {
			return fmt.Errorf("--set-port %s: %w", arg, err)
		}
	}

	if cmd.Flags().Changed("debug") {
		if err := sess.SetDebug(f.debug); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("secure") {
		if err := sess.SetSecure(f.secure); err != nil {
			return err
		}
	}
	return nil
}

// splitPair splits "key=value". Both sides must be non-empty.
func splitPair(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if !ok || k == "" || v == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return k, v, nil
}
