// Package session holds the state of one client session and turns user
// actions into wallet and contract calls.
//
// A Controller owns the connected account, the last book list fetched from the
// contract, the add-book form and the busy/error flags. It never edits book
// records itself: every change is sent to the contract and the whole list is
// fetched again once the transaction is confirmed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/lehigh-university-libraries/bookledger/internal/ledger"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

const defaultSettleDelay = time.Second

// Options configures a Controller
type Options struct {
	// Network is the chain the contract lives on. Defaults to Sepolia.
	Network wallet.Network
	// ContractAddress may be empty or a placeholder; calls then fail with a configuration message.
	ContractAddress string
	// SettleDelay is how long to wait after a network switch before re-reading the chain.
	SettleDelay time.Duration
	// Dial binds the contract. Defaults to ledger.Dial.
	Dial ledger.Dialer
}

// Controller is the state of one session. It is safe for concurrent use, but
// only one user action runs at a time; others fail with ErrBusy.
type Controller struct {
	provider wallet.Provider
	network  wallet.Network
	contract string
	settle   time.Duration
	dial     ledger.Dialer

	mu        sync.Mutex
	account   common.Address
	gateway   ledger.Gateway
	connected bool
	books     []models.Book
	draft     models.Draft
	busy      bool
	errMsg    string
	notice    string
	watchers  map[int]func(models.State)
	nextWatch int

	events    chan wallet.Event
	sub       event.Subscription
	quit      chan struct{}
	closeOnce sync.Once
}

// New creates a controller and subscribes to the provider's change
// notifications. provider may be nil when no wallet is available; Connect then
// reports it. Call Close to unsubscribe.
func New(provider wallet.Provider, opts Options) *Controller {
	if opts.Network.ChainID == 0 {
		opts.Network = wallet.Sepolia()
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.Dial == nil {
		opts.Dial = ledger.Dial
	}

	c := &Controller{
		provider: provider,
		network:  opts.Network,
		contract: opts.ContractAddress,
		settle:   opts.SettleDelay,
		dial:     opts.Dial,
		watchers: make(map[int]func(models.State)),
		quit:     make(chan struct{}),
	}
	if provider != nil {
		c.events = make(chan wallet.Event, 16)
		c.sub = provider.SubscribeEvents(c.events)
		go c.loop()
	}
	return c
}

// Network returns the chain the controller requires
func (c *Controller) Network() wallet.Network {
	return c.network
}

// Connect authorizes the wallet, moves it to the required network when needed,
// opens the session and loads the book list. The session stays open when only
// the list fetch fails.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.finish()

	if c.provider == nil {
		return c.fail(opConnect, wallet.ErrNoWallet)
	}

	accs, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return c.fail(opConnect, err)
	}
	if err := c.ensureNetwork(ctx); err != nil {
		return c.fail(opConnect, err)
	}

	var gw ledger.Gateway
	if addr, err := ledger.ParseAddress(c.contract); err == nil {
		gw, err = c.dial(ctx, addr, c.provider, accs[0])
		if err != nil {
			return c.fail(opConnect, err)
		}
	}

	c.mu.Lock()
	c.account = accs[0]
	c.gateway = gw
	c.connected = true
	c.mu.Unlock()

	slog.Info("Wallet connected", "account", accs[0].Hex(), "network", c.network.Name)
	c.notify()

	return c.fetch(ctx)
}

// ensureNetwork makes exactly one switch attempt when the wallet is on another chain.
func (c *Controller) ensureNetwork(ctx context.Context) error {
	if c.onRequiredChain(ctx) {
		return nil
	}

	slog.Info("Wallet on another network, requesting switch", "required", c.network.Name, "chain_id", c.network.ChainID)
	if err := c.switchNetwork(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrWrongNetwork, err)
	}

	select {
	case <-time.After(c.settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	if !c.onRequiredChain(ctx) {
		return fmt.Errorf("%w: wallet did not move to %s", ErrWrongNetwork, c.network.Name)
	}
	return nil
}

func (c *Controller) onRequiredChain(ctx context.Context) bool {
	id, err := c.provider.ChainID(ctx)
	if err != nil {
		slog.Warn("Unable to read wallet network", "err", err)
		return false
	}
	return id.IsUint64() && id.Uint64() == c.network.ChainID
}

func (c *Controller) switchNetwork(ctx context.Context) error {
	err := c.provider.SwitchChain(ctx, c.network.ChainIDBig())
	if errors.Is(err, wallet.ErrUnrecognizedChain) {
		slog.Info("Network unknown to wallet, adding it", "network", c.network.Name)
		return c.provider.AddChain(ctx, c.network)
	}
	return err
}

// FetchAll replaces the book list with a fresh snapshot from the contract.
func (c *Controller) FetchAll(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.finish()
	return c.fetch(ctx)
}

func (c *Controller) fetch(ctx context.Context) error {
	gw, err := c.activeGateway()
	if err != nil {
		return c.fail(opFetch, err)
	}

	books, err := gw.GetAllBooks(ctx)
	if err != nil {
		return c.fail(opFetch, err)
	}

	c.mu.Lock()
	if c.connected && c.gateway == gw {
		c.books = books
		c.errMsg = ""
	}
	c.mu.Unlock()

	slog.Debug("Books loaded", "count", len(books))
	return nil
}

// activeGateway returns the contract of the open session, checking the
// connection before the configuration.
func (c *Controller) activeGateway() (ledger.Gateway, error) {
	c.mu.Lock()
	connected, gw := c.connected, c.gateway
	c.mu.Unlock()

	if !connected {
		return nil, ErrNotConnected
	}
	if _, err := ledger.ParseAddress(c.contract); err != nil {
		return nil, err
	}
	if gw == nil {
		return nil, ErrNotConnected
	}
	return gw, nil
}

// SubmitNew sends draft to the contract as a new book and waits for the
// transaction. On success the form is reset and the list fetched again. On
// failure the form keeps the submitted values.
func (c *Controller) SubmitNew(ctx context.Context, draft models.Draft) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.finish()

	c.mu.Lock()
	c.draft = draft
	c.mu.Unlock()

	gw, err := c.activeGateway()
	if err != nil {
		return c.fail(opAdd, err)
	}
	clean, year, err := ValidateDraft(draft)
	if err != nil {
		return c.fail(opAdd, err)
	}

	tx, err := gw.AddBook(ctx, clean.Title, clean.Author, clean.Publisher, year)
	if err != nil {
		return c.fail(opAdd, err)
	}
	slog.Info("Add book submitted", "hash", tx.Hash().Hex(), "title", clean.Title)

	// a mined transaction is reported even if the caller went away
	mined := context.WithoutCancel(ctx)
	if _, err := tx.Wait(mined); err != nil {
		return c.fail(opAdd, err)
	}

	c.mu.Lock()
	c.draft = models.Draft{}
	c.mu.Unlock()

	if err := c.fetch(mined); err != nil {
		return err
	}

	c.mu.Lock()
	c.notice = "Book added to the ledger."
	c.mu.Unlock()
	return nil
}

// ToggleLoanState flips the loan status of book id, waits for the
// transaction and fetches the list again.
func (c *Controller) ToggleLoanState(ctx context.Context, id uint64) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.finish()

	gw, err := c.activeGateway()
	if err != nil {
		return c.fail(opToggle, err)
	}

	tx, err := gw.ToggleLoan(ctx, id)
	if err != nil {
		return c.fail(opToggle, err)
	}
	slog.Info("Loan toggle submitted", "hash", tx.Hash().Hex(), "book_id", id)

	mined := context.WithoutCancel(ctx)
	if _, err := tx.Wait(mined); err != nil {
		return c.fail(opToggle, err)
	}
	return c.fetch(mined)
}

// SetDraft replaces the form contents
func (c *Controller) SetDraft(d models.Draft) {
	c.mu.Lock()
	c.draft = d
	c.mu.Unlock()
	c.notify()
}

// ClearDraft empties the form
func (c *Controller) ClearDraft() {
	c.SetDraft(models.Draft{})
}

// DismissError hides the current error and notice
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.notice = ""
	c.mu.Unlock()
	c.notify()
}

// Disconnect closes the session at the user's request and resets the form.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.clearSessionLocked()
	c.draft = models.Draft{}
	c.errMsg = ""
	c.notice = ""
	c.mu.Unlock()

	slog.Info("Session disconnected")
	c.notify()
}

func (c *Controller) clearSessionLocked() {
	c.account = common.Address{}
	c.gateway = nil
	c.connected = false
	c.books = nil
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() models.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := models.State{
		Connected: c.connected,
		Books:     append([]models.Book{}, c.books...),
		Draft:     c.draft,
		Busy:      c.busy,
		Error:     c.errMsg,
		Notice:    c.notice,
	}
	if c.connected {
		s.Account = c.account.Hex()
		s.ChainID = c.network.ChainID
	}
	return s
}

// Watch calls fn with a snapshot after every state change until cancel is called.
func (c *Controller) Watch(fn func(models.State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	state := c.Snapshot()

	c.mu.Lock()
	fns := make([]func(models.State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (c *Controller) begin() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return &UserError{Message: describe("", c.network, ErrBusy), Err: ErrBusy}
	}
	c.busy = true
	c.errMsg = ""
	c.notice = ""
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) fail(op string, err error) error {
	msg := describe(op, c.network, err)
	slog.Error("Session operation failed", "op", op, "err", err)

	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	return &UserError{Message: msg, Err: err}
}

func (c *Controller) loop() {
	for {
		select {
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-c.sub.Err():
			return
		case <-c.quit:
			return
		}
	}
}

// handleEvent drops the session when the wallet disconnects, changes account
// or leaves the required network.
func (c *Controller) handleEvent(ev wallet.Event) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}

	var reason string
	switch ev.Kind {
	case wallet.AccountsChanged:
		if len(ev.Accounts) == 0 {
			reason = "Wallet disconnected."
		} else if ev.Accounts[0] != c.account {
			reason = "Wallet account changed. Connect again to continue."
		}
	case wallet.ChainChanged:
		if ev.ChainID == nil || !ev.ChainID.IsUint64() || ev.ChainID.Uint64() != c.network.ChainID {
			reason = "Wallet network changed. Connect again to continue."
		}
	}
	if reason == "" {
		c.mu.Unlock()
		return
	}

	c.clearSessionLocked()
	c.notice = reason
	c.mu.Unlock()

	slog.Info("Session closed by wallet", "event", ev.Kind.String())
	c.notify()
}

// Close unsubscribes from the wallet and drops all watchers.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		c.mu.Lock()
		c.watchers = make(map[int]func(models.State))
		c.mu.Unlock()
	})
}
