package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "specimen",
		Short:         "Static triage of binary samples",
		Long:          "specimen fingerprints a binary sample, extracts its strings, parses PE/ELF structure and detects known packers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "YAML configuration file")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newSignaturesCmd())
	cmd.AddCommand(newVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version

	return cmd
}
