package tui

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Book Ledger"))
	b.WriteString("\n")

	if m.state.Error != "" {
		b.WriteString(errorStyle.Render(m.state.Error))
		b.WriteString("\n\n")
	} else if m.state.Notice != "" {
		b.WriteString(noticeStyle.Render(m.state.Notice))
		b.WriteString("\n\n")
	}
	if m.suggestErr != "" {
		b.WriteString(errorStyle.Render(m.suggestErr))
		b.WriteString("\n\n")
	}

	if !m.state.Connected {
		b.WriteString(renderConnect(m.ctrl.Network().Name, m.state.Busy))
		b.WriteString(helpStyle.Render("c connect • q quit"))
		return b.String()
	}

	b.WriteString(subtitleStyle.Render("Connected: " + m.state.ShortAccount()))
	b.WriteString("\n\n")

	if m.mode == modeForm {
		b.WriteString(boxStyle.Render(m.renderForm()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab navigate • ctrl+s add • ctrl+l clear • ctrl+g suggest • esc back"))
		return b.String()
	}

	b.WriteString(renderBooks(m.state, m.cursor))
	b.WriteString(helpStyle.Render("↑/↓ select • t toggle loan • a add book • r refresh • x dismiss • d disconnect • q quit"))
	return b.String()
}

func renderConnect(network string, busy bool) string {
	var b strings.Builder
	b.WriteString("Connect your wallet on the " + network + " network to start.\n")
	b.WriteString(subtitleStyle.Render("Missing the network? It will be added to the wallet automatically."))
	b.WriteString("\n")
	if busy {
		b.WriteString("\nConnecting...\n")
	}
	return b.String()
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString(focusedStyle.Render("Add a new book"))
	b.WriteString("\n\n")

	labels := []string{"Title", "Author", "Publisher", "Year"}
	for i, label := range labels {
		if i == m.focused {
			b.WriteString(focusedStyle.Render("> " + label + ":"))
		} else {
			b.WriteString(blurredStyle.Render("  " + label + ":"))
		}
		b.WriteString("\n  ")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	if m.state.Busy {
		b.WriteString("\nProcessing...\n")
	}
	return b.String()
}

// renderBooks draws one entry per book, the selected one marked with a cursor.
func renderBooks(s models.State, cursor int) string {
	if len(s.Books) == 0 {
		if s.Busy {
			return "Loading books...\n"
		}
		return "No books yet.\n" + subtitleStyle.Render("Press a to add the first one.") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Catalog (%d)\n\n", len(s.Books))
	for i, book := range s.Books {
		prefix := "  "
		title := book.Title
		if i == cursor {
			prefix = "> "
			title = focusedStyle.Render(title)
		}

		status := availableStyle.Render(book.StatusLabel())
		if book.OnLoan {
			status = onLoanStyle.Render(book.StatusLabel())
		}

		fmt.Fprintf(&b, "%s%s  [%s]\n", prefix, title, status)
		fmt.Fprintf(&b, "    %s • %s • %d • #%d • added %s\n",
			book.Author, book.Publisher, book.Year, book.ID, book.AddedDate())
	}
	return b.String()
}
