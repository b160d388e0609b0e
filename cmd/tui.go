package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookledger/internal/tui"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal catalog interface",
		Long: `Opens a full screen terminal interface for one session.

Press c to connect, a to add a book, t to toggle the selected book and q
to quit. Logs are discarded unless --log-file is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.openWallet(cmd.Context()); err != nil {
				return err
			}
			ctrl := current.newController()
			defer ctrl.Close()

			var suggester tui.Suggester
			if s := current.suggester(); s != nil {
				suggester = s
			}
			return tui.Run(cmd.Context(), ctrl, suggester)
		},
	}
}
