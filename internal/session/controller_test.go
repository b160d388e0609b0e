package session

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lehigh-university-libraries/bookledger/internal/ledger"
	ledgermock "github.com/lehigh-university-libraries/bookledger/internal/ledger/mock"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
	walletmock "github.com/lehigh-university-libraries/bookledger/internal/wallet/mock"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

var sepoliaID = wallet.Sepolia().ChainID

func newTestController(t *testing.T, w wallet.Provider, gw *ledgermock.Mock, contract string) *Controller {
	t.Helper()
	c := New(w, Options{
		Network:         wallet.Sepolia(),
		ContractAddress: contract,
		SettleDelay:     time.Millisecond,
		Dial:            gw.Dialer(),
	})
	t.Cleanup(c.Close)
	return c
}

func connected(t *testing.T, books ...models.Book) (*Controller, *walletmock.Wallet, *ledgermock.Mock) {
	t.Helper()
	w := walletmock.New(walletmock.WithChain(sepoliaID))
	gw := ledgermock.New(ledgermock.WithBooks(books...))
	c := newTestController(t, w, gw, testContract)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Unexpected connect error: %v", err)
	}
	return c, w, gw
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sampleBooks() []models.Book {
	return []models.Book{
		{ID: 0, Title: "Ficciones", Author: "Jorge Luis Borges", Publisher: "Sur", Year: 1944},
		{ID: 1, Title: "Pedro Páramo", Author: "Juan Rulfo", Publisher: "FCE", Year: 1955, OnLoan: true},
		{ID: 2, Title: "La casa de los espíritus", Author: "Isabel Allende", Publisher: "Plaza & Janés", Year: 1982},
	}
}

func TestConnectLoadsBooks(t *testing.T) {
	c, _, gw := connected(t, sampleBooks()...)

	state := c.Snapshot()
	if !state.Connected {
		t.Fatal("Expected session to be connected")
	}
	if len(state.Books) != 3 {
		t.Errorf("Expected 3 books, got %d", len(state.Books))
	}
	for i, b := range state.Books {
		if b.OnLoan != sampleBooks()[i].OnLoan {
			t.Errorf("Book %d: expected on loan %v, got %v", i, sampleBooks()[i].OnLoan, b.OnLoan)
		}
	}
	if state.ChainID != sepoliaID {
		t.Errorf("Expected chain %d, got %d", sepoliaID, state.ChainID)
	}
	if getAll, _, _ := gw.Counts(); getAll != 1 {
		t.Errorf("Expected 1 list fetch on connect, got %d", getAll)
	}
}

func TestConnectWithoutWallet(t *testing.T) {
	c := New(nil, Options{ContractAddress: testContract})
	defer c.Close()

	err := c.Connect(context.Background())
	if !errors.Is(err, wallet.ErrNoWallet) {
		t.Fatalf("Expected ErrNoWallet, got %v", err)
	}
	if !strings.Contains(c.Snapshot().Error, "No wallet found") {
		t.Errorf("Expected wallet missing message, got %q", c.Snapshot().Error)
	}
}

func TestConnectRejected(t *testing.T) {
	w := walletmock.New(walletmock.WithChain(sepoliaID))
	w.RequestErr = wallet.ErrUserRejected
	c := newTestController(t, w, ledgermock.New(), testContract)

	err := c.Connect(context.Background())
	if !errors.Is(err, wallet.ErrUserRejected) {
		t.Fatalf("Expected ErrUserRejected, got %v", err)
	}
	state := c.Snapshot()
	if state.Connected {
		t.Error("Expected no session after rejection")
	}
	if !strings.Contains(state.Error, "rejected") {
		t.Errorf("Expected rejection message, got %q", state.Error)
	}
}

func TestNetworkMismatchMakesOneSwitchAttempt(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(w *walletmock.Wallet)
		wantErr   error
		wantAdds  int
		connected bool
	}{
		{
			name:      "known network switches",
			setup:     func(w *walletmock.Wallet) { w.Known[sepoliaID] = true },
			connected: true,
		},
		{
			name:      "unknown network is added",
			setup:     func(w *walletmock.Wallet) {},
			wantAdds:  1,
			connected: true,
		},
		{
			name:    "switch rejected",
			setup:   func(w *walletmock.Wallet) { w.SwitchErr = wallet.ErrUserRejected },
			wantErr: ErrWrongNetwork,
		},
		{
			name:     "add fails",
			setup:    func(w *walletmock.Wallet) { w.AddErr = errors.New("add refused") },
			wantErr:  ErrWrongNetwork,
			wantAdds: 1,
		},
		{
			name: "wallet stays on old chain",
			setup: func(w *walletmock.Wallet) {
				w.Known[sepoliaID] = true
				w.StayOnChain = true
			},
			wantErr: ErrWrongNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := walletmock.New(walletmock.WithChain(1))
			tt.setup(w)
			gw := ledgermock.New()
			c := newTestController(t, w, gw, testContract)

			err := c.Connect(context.Background())
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			_, switches, adds := w.Calls()
			if switches != 1 {
				t.Errorf("Expected exactly 1 switch attempt, got %d", switches)
			}
			if adds != tt.wantAdds {
				t.Errorf("Expected %d add attempts, got %d", tt.wantAdds, adds)
			}
			if c.Snapshot().Connected != tt.connected {
				t.Errorf("Expected connected=%v, got %v", tt.connected, c.Snapshot().Connected)
			}
			if tt.wantErr != nil && !strings.Contains(c.Snapshot().Error, "Sepolia") {
				t.Errorf("Expected wrong network message, got %q", c.Snapshot().Error)
			}
		})
	}
}

func TestConnectOnRightNetworkDoesNotSwitch(t *testing.T) {
	_, w, _ := connected(t)
	if _, switches, _ := w.Calls(); switches != 0 {
		t.Errorf("Expected no switch attempt, got %d", switches)
	}
}

func TestUnconfiguredContract(t *testing.T) {
	for _, address := range []string{"", ledger.PlaceholderAddress} {
		t.Run("address "+address, func(t *testing.T) {
			w := walletmock.New(walletmock.WithChain(sepoliaID))
			dials := 0
			c := New(w, Options{
				ContractAddress: address,
				SettleDelay:     time.Millisecond,
				Dial: func(ctx context.Context, a common.Address, p wallet.Provider, acct common.Address) (ledger.Gateway, error) {
					dials++
					return ledgermock.New(), nil
				},
			})
			defer c.Close()

			err := c.Connect(context.Background())
			if !errors.Is(err, ledger.ErrNotConfigured) {
				t.Fatalf("Expected ErrNotConfigured, got %v", err)
			}
			if dials != 0 {
				t.Errorf("Expected no contract dial, got %d", dials)
			}
			state := c.Snapshot()
			if !state.Connected {
				t.Error("Expected session to stay open")
			}
			if !strings.Contains(state.Error, "contract address") {
				t.Errorf("Expected configuration message, got %q", state.Error)
			}

			err = c.SubmitNew(context.Background(), models.Draft{Title: "a", Author: "b", Publisher: "c", Year: "2000"})
			if !errors.Is(err, ledger.ErrNotConfigured) {
				t.Errorf("Expected ErrNotConfigured on submit, got %v", err)
			}
		})
	}
}

func TestSubmitIncompleteDraftNeverMutates(t *testing.T) {
	full := models.Draft{Title: "Rayuela", Author: "Julio Cortázar", Publisher: "Sudamericana", Year: "1963"}
	tests := []struct {
		name  string
		draft models.Draft
		want  error
	}{
		{name: "no title", draft: models.Draft{Author: full.Author, Publisher: full.Publisher, Year: full.Year}, want: ErrIncompleteDraft},
		{name: "no author", draft: models.Draft{Title: full.Title, Publisher: full.Publisher, Year: full.Year}, want: ErrIncompleteDraft},
		{name: "no publisher", draft: models.Draft{Title: full.Title, Author: full.Author, Year: full.Year}, want: ErrIncompleteDraft},
		{name: "no year", draft: models.Draft{Title: full.Title, Author: full.Author, Publisher: full.Publisher}, want: ErrIncompleteDraft},
		{name: "blank title", draft: models.Draft{Title: "   ", Author: full.Author, Publisher: full.Publisher, Year: full.Year}, want: ErrIncompleteDraft},
		{name: "year not a number", draft: models.Draft{Title: full.Title, Author: full.Author, Publisher: full.Publisher, Year: "1963a"}, want: ErrInvalidYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, gw := connected(t)

			err := c.SubmitNew(context.Background(), tt.draft)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if _, adds, _ := gw.Counts(); adds != 0 {
				t.Errorf("Expected no addBook call, got %d", adds)
			}
			if c.Snapshot().Draft != tt.draft {
				t.Errorf("Expected the form to keep %+v, got %+v", tt.draft, c.Snapshot().Draft)
			}
		})
	}
}

func TestSubmitNewResetsDraftAndRefetchesOnce(t *testing.T) {
	c, _, gw := connected(t, sampleBooks()...)
	before, _, _ := gw.Counts()

	draft := models.Draft{Title: " Rayuela ", Author: "Julio Cortázar", Publisher: "Sudamericana", Year: "1963"}
	if err := c.SubmitNew(context.Background(), draft); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	getAll, adds, _ := gw.Counts()
	if adds != 1 {
		t.Errorf("Expected 1 addBook call, got %d", adds)
	}
	if getAll-before != 1 {
		t.Errorf("Expected exactly 1 re-fetch, got %d", getAll-before)
	}

	state := c.Snapshot()
	if !state.Draft.IsZero() {
		t.Errorf("Expected draft reset, got %+v", state.Draft)
	}
	if len(state.Books) != 4 || state.Books[3].Title != "Rayuela" || state.Books[3].Year != 1963 {
		t.Errorf("Expected new book at the end of the list, got %+v", state.Books)
	}
	if state.Notice == "" || state.Error != "" {
		t.Errorf("Expected success notice and no error, got notice=%q error=%q", state.Notice, state.Error)
	}
}

func TestSubmitNewFailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		addErr  error
		waitErr error
		want    string
	}{
		{name: "user rejected", addErr: errors.New("user rejected transaction"), want: "cancelled by the user"},
		{name: "insufficient funds", addErr: errors.New("insufficient funds for gas * price + value"), want: "Not enough ETH"},
		{name: "bad address", addErr: errors.New("network does not support ENS"), want: "contract address"},
		{name: "generic", addErr: errors.New("nonce too low"), want: "Error adding the book: nonce too low"},
		{name: "reverted on wait", waitErr: ledger.ErrReverted, want: "Error adding the book"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, gw := connected(t)
			gw.ErrAdd = tt.addErr
			gw.ErrWait = tt.waitErr
			before, _, _ := gw.Counts()

			draft := models.Draft{Title: "Ficciones", Author: "Borges", Publisher: "Sur", Year: "1944"}
			if err := c.SubmitNew(context.Background(), draft); err == nil {
				t.Fatal("Expected error")
			}

			state := c.Snapshot()
			if !strings.Contains(state.Error, tt.want) {
				t.Errorf("Expected message containing %q, got %q", tt.want, state.Error)
			}
			if state.Draft != draft {
				t.Errorf("Expected draft kept after failure, got %+v", state.Draft)
			}
			if getAll, _, _ := gw.Counts(); getAll != before {
				t.Errorf("Expected no re-fetch after failure, got %d", getAll-before)
			}
			if state.Busy {
				t.Error("Expected busy flag cleared")
			}
		})
	}
}

func TestToggleLoanStateRefetchesOnce(t *testing.T) {
	c, _, gw := connected(t, sampleBooks()...)
	before, _, _ := gw.Counts()

	if err := c.ToggleLoanState(context.Background(), 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	getAll, _, toggles := gw.Counts()
	if toggles != 1 {
		t.Errorf("Expected 1 toggleLoan call, got %d", toggles)
	}
	if getAll-before != 1 {
		t.Errorf("Expected exactly 1 re-fetch, got %d", getAll-before)
	}
	if c.Snapshot().Books[1].OnLoan {
		t.Error("Expected book 1 to be available after toggle")
	}
}

func TestToggleUnknownBook(t *testing.T) {
	c, _, _ := connected(t, sampleBooks()...)

	err := c.ToggleLoanState(context.Background(), 42)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.HasPrefix(c.Snapshot().Error, "Error changing the loan status") {
		t.Errorf("Unexpected message %q", c.Snapshot().Error)
	}
}

func TestActionsRequireConnection(t *testing.T) {
	w := walletmock.New(walletmock.WithChain(sepoliaID))
	gw := ledgermock.New()
	c := newTestController(t, w, gw, testContract)
	ctx := context.Background()

	if err := c.FetchAll(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected from FetchAll, got %v", err)
	}
	if err := c.ToggleLoanState(ctx, 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected from ToggleLoanState, got %v", err)
	}
	draft := models.Draft{Title: "a", Author: "b", Publisher: "c", Year: "1"}
	if err := c.SubmitNew(ctx, draft); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected from SubmitNew, got %v", err)
	}
	if getAll, adds, toggles := gw.Counts(); getAll+adds+toggles != 0 {
		t.Errorf("Expected no gateway calls, got %d/%d/%d", getAll, adds, toggles)
	}
}

func TestBusyRejectsSecondAction(t *testing.T) {
	c, _, gw := connected(t, sampleBooks()...)
	before, _, _ := gw.Counts()

	if err := c.begin(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !c.Snapshot().Busy {
		t.Error("Expected busy state")
	}

	err := c.FetchAll(context.Background())
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if getAll, _, _ := gw.Counts(); getAll != before {
		t.Errorf("Expected no gateway call while busy")
	}

	c.finish()
	if err := c.FetchAll(context.Background()); err != nil {
		t.Errorf("Unexpected error after finish: %v", err)
	}
}

func TestAccountDisconnectClearsSession(t *testing.T) {
	c, w, _ := connected(t, sampleBooks()...)

	w.Disconnect()
	waitFor(t, "session to close", func() bool { return !c.Snapshot().Connected })

	state := c.Snapshot()
	if state.Account != "" || len(state.Books) != 0 {
		t.Errorf("Expected cleared session, got %+v", state)
	}
	if state.Notice != "Wallet disconnected." {
		t.Errorf("Expected disconnect notice, got %q", state.Notice)
	}
}

func TestAccountSwitchClearsSession(t *testing.T) {
	c, w, _ := connected(t)

	w.Emit(wallet.Event{Kind: wallet.AccountsChanged, Accounts: []common.Address{common.HexToAddress("0xb0b")}})
	waitFor(t, "session to close", func() bool { return !c.Snapshot().Connected })
}

func TestChainChangeEvents(t *testing.T) {
	c, w, _ := connected(t)

	w.Emit(wallet.Event{Kind: wallet.ChainChanged, ChainID: new(big.Int).SetUint64(sepoliaID)})
	w.Emit(wallet.Event{Kind: wallet.AccountsChanged, Accounts: []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000a1")}})
	time.Sleep(20 * time.Millisecond)
	if !c.Snapshot().Connected {
		t.Fatal("Expected session to survive events that keep account and network")
	}

	w.Emit(wallet.Event{Kind: wallet.ChainChanged, ChainID: big.NewInt(1)})
	waitFor(t, "session to close", func() bool { return !c.Snapshot().Connected })
}

func TestCloseUnsubscribes(t *testing.T) {
	w := walletmock.New(walletmock.WithChain(sepoliaID))
	c := New(w, Options{ContractAddress: testContract, Dial: ledgermock.New().Dialer()})

	if n := w.Emit(wallet.Event{Kind: wallet.AccountsChanged}); n != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", n)
	}
	c.Close()
	c.Close()
	if n := w.Emit(wallet.Event{Kind: wallet.AccountsChanged}); n != 0 {
		t.Errorf("Expected no subscribers after Close, got %d", n)
	}
}

func TestWatchReceivesChanges(t *testing.T) {
	c, _, _ := connected(t)

	var states []models.State
	cancel := c.Watch(func(s models.State) { states = append(states, s) })

	c.SetDraft(models.Draft{Title: "Ficciones"})
	c.ClearDraft()
	cancel()
	c.SetDraft(models.Draft{Title: "ignored"})

	if len(states) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(states))
	}
	if states[0].Draft.Title != "Ficciones" || !states[1].Draft.IsZero() {
		t.Errorf("Unexpected notifications: %+v", states)
	}
}

func TestDisconnectAndDismiss(t *testing.T) {
	c, _, gw := connected(t)
	gw.ErrGetAll = errors.New("rpc timeout")

	if err := c.FetchAll(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
	if c.Snapshot().Error != "Error loading books: rpc timeout" {
		t.Errorf("Unexpected error text %q", c.Snapshot().Error)
	}
	c.DismissError()
	if c.Snapshot().Error != "" {
		t.Error("Expected error dismissed")
	}

	c.SetDraft(models.Draft{Title: "half typed"})
	c.Disconnect()
	state := c.Snapshot()
	if state.Connected || !state.Draft.IsZero() {
		t.Errorf("Expected disconnected state with empty form, got %+v", state)
	}
}

func TestConfirmedChangesSurviveCallerCancel(t *testing.T) {
	c, _, gw := connected(t, sampleBooks()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	draft := models.Draft{Title: "Rayuela", Author: "Julio Cortázar", Publisher: "Sudamericana", Year: "1963"}
	if err := c.SubmitNew(ctx, draft); err != nil {
		t.Fatalf("Expected add to complete after cancel, got %v", err)
	}
	state := c.Snapshot()
	if len(state.Books) != 4 || state.Error != "" || state.Notice == "" {
		t.Errorf("Expected refreshed list with notice, got %d books error=%q notice=%q", len(state.Books), state.Error, state.Notice)
	}

	if err := c.ToggleLoanState(ctx, 0); err != nil {
		t.Fatalf("Expected toggle to complete after cancel, got %v", err)
	}
	if !c.Snapshot().Books[0].OnLoan {
		t.Error("Expected refreshed list to show the toggled book")
	}
	if !gw.Books()[0].OnLoan {
		t.Error("Expected contract state toggled")
	}
}
