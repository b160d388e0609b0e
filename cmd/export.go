package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookledger/internal/catalogio"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the catalog to a parquet, JSONL or YAML file",
		Example: `  bookledger export catalog.parquet
  bookledger export catalog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := current.connectedController(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Close()

			books := ctrl.Snapshot().Books
			meta := catalogio.Meta{
				Network:  current.cfg.Network.Name,
				ChainID:  current.cfg.Network.ChainID,
				Contract: current.cfg.Contract.Address,
			}
			if err := catalogio.Export(args[0], books, meta); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d books to %s\n", len(books), args[0])
			return nil
		},
	}
}
