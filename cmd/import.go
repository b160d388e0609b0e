package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookledger/internal/catalogio"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

// submitter is the part of a session the import needs
type submitter interface {
	SubmitNew(ctx context.Context, draft models.Draft) error
}

func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Add every book of a parquet, JSONL or YAML file to the contract",
		Long: `Reads a catalog file written by export (or by hand) and submits each
book as a new record, one transaction at a time. Loan state and ids in
the file are ignored. Failed rows are reported and the import continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := catalogio.Load(args[0])
			if err != nil {
				return err
			}
			drafts := catalogio.Drafts(books)
			if dryRun {
				printBooks(cmd.OutOrStdout(), books)
				return nil
			}

			ctrl, err := current.connectedController(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Close()

			added, failed := importDrafts(cmd.Context(), ctrl, drafts, cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d books\n", added, len(drafts))
			if failed > 0 {
				return fmt.Errorf("%d books failed to import", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the books without submitting them")

	return cmd
}

// importDrafts submits drafts in order and stops early only when ctx is done.
func importDrafts(ctx context.Context, s submitter, drafts []models.Draft, w io.Writer) (added, failed int) {
	for i, d := range drafts {
		if ctx.Err() != nil {
			failed += len(drafts) - i
			break
		}
		if err := s.SubmitNew(ctx, d); err != nil {
			failed++
			slog.Debug("Import row failed", "row", i+1, "err", err)
			fmt.Fprintf(w, "row %d (%s): %v\n", i+1, d.Title, err)
			continue
		}
		added++
	}
	return added, failed
}
