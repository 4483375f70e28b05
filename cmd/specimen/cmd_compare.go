package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "compare <file-a> <file-b>",
		Short: "Compare two files by fuzzy hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" && format != "text" {
				return fmt.Errorf("unknown format %q (want json, yaml or text)", format)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmp, err := a.orchestrator.Compare(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, cmp)
			case "yaml":
				return writeYAML(out, cmp)
			default:
				displayComparison(out, args[0], args[1], cmp)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (json|yaml|text)")
	return cmd
}
