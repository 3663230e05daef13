package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/territorium/servertools/internal/props"
)

func parseCmd(a *app) *cobra.Command {
	var comments []string

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Print the flattened key=value pairs of a properties file",
		Long: `Parse reads a properties style file (key=value, key: value or key value,
with [section] headers and backslash escapes) and prints every pair as a
flat key=value line in key order. There is no comment syntax unless
--comment-prefix is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			p := props.NewProperties()
			opts := []props.Option{
				props.WithLogger(a.logger),
				props.WithCommentPrefixes(comments...),
			}
			if err := props.Parse(f, p, opts...); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return props.Write(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringSliceVar(&comments, "comment-prefix", nil, "Treat lines starting with this prefix as comments (repeatable)")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Validate a document and print it in the chosen format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loader().LoadDocument(args[0])
			if err != nil {
				return err
			}
			if _, _, err := doc.Build(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return writeDocument(cmd.OutOrStdout(), a.format(format), doc)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (toml, yaml, properties)")
	return cmd
}
