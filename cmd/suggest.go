package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/suggest"
)

func newSuggestCmd() *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "suggest TITLE",
		Short: "Ask an LLM for the author, publisher and year of a title",
		Example: `  bookledger suggest "Pedro Páramo"
  bookledger suggest --provider openai --model gpt-4o "Rayuela"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				provider = current.cfg.Suggest.Provider
			}
			if model == "" {
				model = current.cfg.Suggest.Model
			}
			s, err := suggest.New(provider, model)
			if err != nil {
				return err
			}

			d, err := s.Suggest(cmd.Context(), models.Draft{Title: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title:     %s\n", d.Title)
			fmt.Fprintf(out, "Author:    %s\n", d.Author)
			fmt.Fprintf(out, "Publisher: %s\n", d.Publisher)
			fmt.Fprintf(out, "Year:      %s\n", d.Year)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (ollama, openai, gemini)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default per provider)")

	return cmd
}
