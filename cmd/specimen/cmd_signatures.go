package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSignaturesCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "signatures",
		Short: "Load and verify the packer signature database",
		Example: `  specimen signatures --signatures userdb.txt
  specimen signatures --signatures userdb.txt --signatures-sig userdb.txt.asc --keyring pub.asc --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := a.signatures.Load(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			epOnly := 0
			for _, sig := range db.Signatures {
				if sig.EPOnly {
					epOnly++
				}
			}
			fmt.Fprintf(out, "%s: %d signatures (%d entry-point only)\n", db.Source, len(db.Signatures), epOnly)
			if a.config.SignaturesDetachedSig != "" {
				fmt.Fprintf(out, "signature verified with %s\n", a.config.SignaturesKeyring)
			}
			if list {
				for _, sig := range db.Signatures {
					fmt.Fprintf(out, "  %-48s %3d bytes  ep_only=%t\n", sig.Name, sig.Len(), sig.EPOnly)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List every signature")
	cmd.Flags().String("signatures", "", "Packer signature database (PEiD text or YAML)")
	cmd.Flags().String("signatures-sig", "", "Detached OpenPGP signature of the signature database")
	cmd.Flags().String("keyring", "", "Public keyring used to check --signatures-sig")
	return cmd
}
