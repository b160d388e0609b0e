package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List, add and toggle books without the interactive interfaces",
	}
	cmd.AddCommand(newBooksListCmd())
	cmd.AddCommand(newBooksAddCmd())
	cmd.AddCommand(newBooksToggleCmd())
	return cmd
}

func newBooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every book on the contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := current.connectedController(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Close()

			printBooks(cmd.OutOrStdout(), ctrl.Snapshot().Books)
			return nil
		},
	}
}

func newBooksAddCmd() *cobra.Command {
	var (
		draft       models.Draft
		withSuggest bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the contract",
		Example: `  bookledger books add --title "Ficciones" --author "Jorge Luis Borges" --publisher Sur --year 1944

  # Ask the LLM for the missing fields first
  bookledger books add --title "Ficciones" --suggest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if withSuggest {
				s := current.suggester()
				if s == nil {
					return fmt.Errorf("suggestions are not configured")
				}
				suggested, err := s.Suggest(cmd.Context(), draft)
				if err != nil {
					return err
				}
				draft = suggested
				fmt.Fprintf(cmd.ErrOrStderr(), "Using %s, %s, %s\n", draft.Author, draft.Publisher, draft.Year)
			}

			ctrl, err := current.connectedController(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.SubmitNew(cmd.Context(), draft); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctrl.Snapshot().Notice)
			return nil
		},
	}

	cmd.Flags().StringVar(&draft.Title, "title", "", "Book title")
	cmd.Flags().StringVar(&draft.Author, "author", "", "Author")
	cmd.Flags().StringVar(&draft.Publisher, "publisher", "", "Publisher")
	cmd.Flags().StringVar(&draft.Year, "year", "", "Publication year")
	cmd.Flags().BoolVar(&withSuggest, "suggest", false, "Fill empty fields with an LLM suggestion before adding")

	return cmd
}

func newBooksToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip the loan state of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}

			ctrl, err := current.connectedController(cmd.Context())
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.ToggleLoanState(cmd.Context(), id); err != nil {
				return err
			}
			for _, b := range ctrl.Snapshot().Books {
				if b.ID == id {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", b.Title, b.StatusLabel())
				}
			}
			return nil
		},
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printBooks(w io.Writer, books []models.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books yet.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "AUTHOR", "PUBLISHER", "YEAR", "STATUS", "ADDED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, b := range books {
		t.Row(
			strconv.FormatUint(b.ID, 10),
			b.Title,
			b.Author,
			b.Publisher,
			strconv.FormatUint(b.Year, 10),
			b.StatusLabel(),
			b.AddedDate(),
		)
	}
	fmt.Fprintln(w, t.Render())
}
