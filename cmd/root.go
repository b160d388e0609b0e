package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		logFile    string
	)

	cmd := &cobra.Command{
		Use:   "bookledger",
		Short: "Library catalog kept on an Ethereum contract",
		Long: `Bookledger manages a library catalog stored in a smart contract.

Connect a wallet, list the books on the contract, add new ones and mark
them as on loan or available, from a web page, a terminal interface or
one-shot commands.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return current.setup(configPath, verbose, logFile, cmd.Name() == "tui")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			current.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default bookledger.yaml when present)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTUICmd())
	cmd.AddCommand(newBooksCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newSuggestCmd())

	return cmd
}
