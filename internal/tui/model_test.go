package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	ledgermock "github.com/lehigh-university-libraries/bookledger/internal/ledger/mock"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/session"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
	walletmock "github.com/lehigh-university-libraries/bookledger/internal/wallet/mock"
)

type fakeSuggester struct{}

func (fakeSuggester) Suggest(ctx context.Context, d models.Draft) (models.Draft, error) {
	d.Author = "Julio Cortázar"
	d.Publisher = "Sudamericana"
	d.Year = "1963"
	return d, nil
}

func sampleBooks() []models.Book {
	return []models.Book{
		{ID: 0, Title: "Ficciones", Author: "Jorge Luis Borges", Publisher: "Sur", Year: 1944},
		{ID: 1, Title: "Pedro Páramo", Author: "Juan Rulfo", Publisher: "FCE", Year: 1955, OnLoan: true},
		{ID: 2, Title: "Cien años de soledad", Author: "Gabriel García Márquez", Publisher: "Sudamericana", Year: 1967, OnLoan: true},
	}
}

func newTestModel(t *testing.T, suggester Suggester, books ...models.Book) (Model, *ledgermock.Mock) {
	t.Helper()
	w := walletmock.New(walletmock.WithChain(wallet.Sepolia().ChainID))
	gw := ledgermock.New(ledgermock.WithBooks(books...))
	ctrl := session.New(w, session.Options{
		ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		SettleDelay:     time.Millisecond,
		Dial:            gw.Dialer(),
	})
	t.Cleanup(ctrl.Close)
	return NewModel(context.Background(), ctrl, suggester), gw
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+g":
		return tea.KeyMsg{Type: tea.KeyCtrlG}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, _ := m.Update(key(k))
	return next.(Model)
}

// act sends a key and feeds the result of the operation it started back in.
func act(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("Expected %q to start an operation", k)
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func TestRenderBooks(t *testing.T) {
	state := models.State{Connected: true, Books: sampleBooks()}
	out := renderBooks(state, 0)

	if got := strings.Count(out, "> "); got != 1 {
		t.Errorf("Expected 1 cursor, got %d", got)
	}
	if got := strings.Count(out, "On loan"); got != 2 {
		t.Errorf("Expected 2 books on loan, got %d", got)
	}
	if got := strings.Count(out, "Available"); got != 1 {
		t.Errorf("Expected 1 available book, got %d", got)
	}
	if !strings.Contains(out, "Catalog (3)") {
		t.Errorf("Expected catalog count in %q", out)
	}
	for _, b := range sampleBooks() {
		if !strings.Contains(out, b.Title) {
			t.Errorf("Expected %q in list", b.Title)
		}
	}
}

func TestRenderBooksEmpty(t *testing.T) {
	tests := []struct {
		name  string
		state models.State
		want  string
	}{
		{name: "empty", state: models.State{Connected: true}, want: "No books yet."},
		{name: "loading", state: models.State{Connected: true, Busy: true}, want: "Loading books..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := renderBooks(tt.state, 0); !strings.Contains(out, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, out)
			}
		})
	}
}

func TestConnectAndToggle(t *testing.T) {
	m, gw := newTestModel(t, nil, sampleBooks()...)

	if !strings.Contains(m.View(), "Connect your wallet") {
		t.Error("Expected connect prompt")
	}

	m = act(t, m, "c")
	if !m.state.Connected {
		t.Fatalf("Expected connected state, error %q", m.state.Error)
	}
	if len(m.state.Books) != 3 {
		t.Fatalf("Expected 3 books, got %d", len(m.state.Books))
	}

	m = press(t, m, "j")
	m = act(t, m, "t")
	if _, _, toggles := gw.Counts(); toggles != 1 {
		t.Errorf("Expected 1 toggle, got %d", toggles)
	}
	if m.state.Books[1].OnLoan {
		t.Error("Expected second book available after toggle")
	}

	m = press(t, m, "d")
	if m.ctrl.Snapshot().Connected {
		t.Error("Expected disconnect")
	}
}

func TestAddBookFromForm(t *testing.T) {
	m, gw := newTestModel(t, nil)
	m = act(t, m, "c")
	m = press(t, m, "a")
	if m.mode != modeForm {
		t.Fatal("Expected form mode")
	}

	m = typeText(t, m, "Ficciones")
	m = press(t, m, "tab")
	m = typeText(t, m, "Borges")
	m = press(t, m, "tab")
	m = typeText(t, m, "Sur")

	// year missing
	m = act(t, m, "ctrl+s")
	if _, adds, _ := gw.Counts(); adds != 0 {
		t.Fatalf("Expected no add with an empty field, got %d", adds)
	}
	if m.state.Error != "Please fill in all fields." {
		t.Errorf("Expected validation message, got %q", m.state.Error)
	}
	if m.draft().Title != "Ficciones" {
		t.Errorf("Expected form kept, got %+v", m.draft())
	}

	m = press(t, m, "tab")
	m = typeText(t, m, "1944")
	m = act(t, m, "ctrl+s")

	if _, adds, _ := gw.Counts(); adds != 1 {
		t.Fatalf("Expected 1 add, got %d", adds)
	}
	if m.mode != modeList {
		t.Error("Expected list mode after add")
	}
	if !m.draft().IsZero() {
		t.Errorf("Expected empty form, got %+v", m.draft())
	}
	if len(m.state.Books) != 1 {
		t.Errorf("Expected 1 book, got %d", len(m.state.Books))
	}
}

func TestSuggestAndClear(t *testing.T) {
	m, _ := newTestModel(t, fakeSuggester{})
	m = act(t, m, "c")
	m = press(t, m, "a")

	m = press(t, m, "ctrl+g")
	if m.suggestErr == "" {
		t.Error("Expected title required message")
	}

	m = typeText(t, m, "Rayuela")
	m = act(t, m, "ctrl+g")
	if got := m.draft(); got.Author != "Julio Cortázar" || got.Year != "1963" {
		t.Errorf("Expected suggested fields, got %+v", got)
	}

	m = press(t, m, "ctrl+l")
	if !m.draft().IsZero() {
		t.Errorf("Expected cleared form, got %+v", m.draft())
	}
}
