package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/specimen/internal/domain/interfaces"
)

func newAnalyzeCmd() *cobra.Command {
	var format string
	var timeout time.Duration
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Run static triage on one or more files",
		Long: `Run static triage on one or more files.

Performs:
  - MD5, SHA-1, SHA-256, CRC-32 and ssdeep fingerprints
  - ASCII and UTF-16LE string extraction
  - MIME type and container (PE/ELF) detection
  - PE header, section, import and export parsing
  - ELF header, section and program header parsing
  - Packer detection (signature database for PE, UPX probe for ELF)

Failed steps are listed in the record's errors; the record is always produced.`,
		Example: `  specimen analyze sample.exe
  specimen analyze --signatures userdb.txt --format yaml sample.exe
  specimen analyze --format text /bin/ls`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			render, err := rendererFor(format)
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			records := a.orchestrator.AnalyzeAll(ctx, args)
			summary := a.orchestrator.GetSummary(records)
			a.logger.Info("analysis complete",
				interfaces.F("files", summary.Total),
				interfaces.F("with_errors", summary.WithErrors),
				interfaces.F("packed", summary.PackedFiles))

			if err := render(cmd.OutOrStdout(), records); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			if failOnError && summary.WithErrors > 0 {
				return fmt.Errorf("%d of %d records have step errors", summary.WithErrors, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format (json|yaml|text)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall analysis timeout")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any step failed")
	cmd.Flags().String("signatures", "", "Packer signature database (PEiD text or YAML)")
	cmd.Flags().String("signatures-sig", "", "Detached OpenPGP signature of the signature database")
	cmd.Flags().String("keyring", "", "Public keyring used to check --signatures-sig")
	cmd.Flags().String("upx", "", "Path to the upx executable")
	cmd.Flags().Int("min-length", 0, "Minimum string length (default 4)")
	cmd.Flags().Int64("max-file-bytes", 0, "Maximum bytes kept in memory per file")
	cmd.Flags().Duration("step-timeout", 0, "Timeout for each analysis step")
	return cmd
}
