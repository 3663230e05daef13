package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/territorium/servertools/internal/session"
)

func snapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snap"},
		Short:   "Store and restore document snapshots",
		Long: `Snapshots are copies of a document kept in a local sqlite database,
grouped by name.

Examples:
  srvconf snapshot save prod server.toml
  srvconf snapshot list prod
  srvconf snapshot restore 3 -o server.toml
  srvconf snapshot delete 3`,
	}
	cmd.AddCommand(
		snapshotSaveCmd(a),
		snapshotListCmd(a),
		snapshotRestoreCmd(a),
		snapshotDeleteCmd(a),
	)
	return cmd
}

func snapshotSaveCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "save NAME FILE",
		Short: "Store the document in FILE under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session.Open(a.fileLoader(), args[1], a.sessionOptions()...)
			if err != nil {
				return err
			}
			defer sess.Close()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := sess.Snapshot(cmd.Context(), st, args[0], a.format(format))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", snap.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Storage format (toml, yaml, properties)")
	return cmd
}

func snapshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [NAME]",
		Short: "List snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			snaps, err := st.List(cmd.Context(), name)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tCREATED")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Format, s.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func snapshotRestoreCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "restore ID",
		Short: "Write a stored snapshot to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("snapshot %d: %w", id, err)
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(snap.Data)
				return err
			}

			sess, err := session.FromSnapshot(snap, a.sessionOptions()...)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.Save(a.fileLoader(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to OUT, converting to its format (default stdout)")
	return cmd
}

func snapshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("snapshot %d: %w", id, err)
			}
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid snapshot id %q", s)
	}
	return id, nil
}
