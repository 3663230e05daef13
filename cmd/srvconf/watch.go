package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/territorium/servertools/internal/loader"
	"github.com/territorium/servertools/internal/metrics"
	"github.com/territorium/servertools/internal/store"
	"github.com/territorium/servertools/internal/watcher"
)

func watchCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		snapshot    string
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch FILE...",
		Short: "Validate documents again whenever they change",
		Long: `Watch reloads each document after it changes on disk and reports whether
it is still valid. With --snapshot every valid reload is also stored.
With --metrics-addr reload counts are served at /metrics.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := a.loader()
			log := a.logger.WithComponent("watch")

			for _, path := range args {
				if _, _, err := l.Load(path); err != nil {
					return err
				}
			}

			w, err := watcher.New(
				watcher.WithDebounce(debounce),
				watcher.WithLogger(a.logger.WithComponent("watcher")),
			)
			if err != nil {
				return err
			}
			defer w.Close()
			for _, path := range args {
				if err := w.Add(path); err != nil {
					return err
				}
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			reloads, err := metrics.NewReloads(reg)
			if err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = a.settings.MetricsAddr
			}
			if metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, metricsAddr, reg, log); err != nil {
						log.Error("metrics server: %v", err)
					}
				}()
			}

			var st *store.Store
			if snapshot != "" {
				if st, err = a.openStore(); err != nil {
					return err
				}
				defer st.Close()
			}

			log.Info("watching %d documents", len(args))
			err = w.Run(ctx, func(ev watcher.Event) {
				if _, err := os.Stat(ev.Path); err != nil {
					log.Warn("%s is gone (%s)", ev.Path, ev.Op)
					return
				}
				doc, err := reload(l, ev.Path)
				reloads.Observe(err)
				if err != nil {
					log.Error("%v", err)
					fmt.Fprintf(cmd.OutOrStdout(), "%s invalid: %v\n", ev.Path, err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ok: %d ports, %d web modules, %d mime mappings\n",
					ev.Path, len(doc.Ports), len(doc.WebModules), len(doc.MimeMappings))

				if st != nil {
					format := a.format("")
					data, err := loader.Encode(format, doc)
					if err == nil {
						_, err = st.Save(ctx, snapshot, format, data)
					}
					if err != nil {
						log.Error("snapshot of %s: %v", ev.Path, err)
					}
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fl.StringVar(&snapshot, "snapshot", "", "Store every valid reload under this snapshot name")
	fl.DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period before a change is reported")
	return cmd
}

// reload loads and validates the document at path.
func reload(l *loader.Loader, path string) (loader.Document, error) {
	doc, err := l.LoadDocument(path)
	if err != nil {
		return loader.Document{}, err
	}
	if _, _, err := doc.Build(); err != nil {
		return loader.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
