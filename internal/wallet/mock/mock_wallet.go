// Package mock provides an in-memory wallet with scripted answers.
package mock

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

// Wallet implements wallet.Provider. Known networks are switchable; any other
// chain id fails with wallet.ErrUnrecognizedChain until added.
type Wallet struct {
	mu sync.Mutex

	Accounts   []common.Address
	Active     uint64
	Known      map[uint64]bool
	RequestErr error
	SwitchErr  error
	AddErr     error
	// StayOnChain makes switch and add succeed without changing the active chain.
	StayOnChain bool

	RequestCalls int
	SwitchCalls  int
	AddCalls     int

	feed event.Feed
}

// Option configures the mock wallet.
type Option func(*Wallet)

// WithAccounts sets the accounts returned on authorization.
func WithAccounts(accs ...common.Address) Option {
	return func(w *Wallet) {
		w.Accounts = accs
	}
}

// WithChain sets the active chain and marks it known.
func WithChain(id uint64) Option {
	return func(w *Wallet) {
		w.Active = id
		w.Known[id] = true
	}
}

// WithKnownChain marks a chain as switchable without adding it.
func WithKnownChain(id uint64) Option {
	return func(w *Wallet) {
		w.Known[id] = true
	}
}

// New creates a mock wallet holding one account on chain 1.
func New(opts ...Option) *Wallet {
	w := &Wallet{
		Accounts: []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000a1")},
		Active:   1,
		Known:    map[uint64]bool{1: true},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.RequestCalls++
	if w.RequestErr != nil {
		return nil, w.RequestErr
	}
	if len(w.Accounts) == 0 {
		return nil, wallet.ErrNoAccounts
	}
	return append([]common.Address(nil), w.Accounts...), nil
}

func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).SetUint64(w.Active), nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.SwitchCalls++
	if w.SwitchErr != nil {
		return w.SwitchErr
	}
	if !w.Known[chainID.Uint64()] {
		return fmt.Errorf("%w: %#x", wallet.ErrUnrecognizedChain, chainID.Uint64())
	}
	if !w.StayOnChain {
		w.Active = chainID.Uint64()
	}
	return nil
}

func (w *Wallet) AddChain(ctx context.Context, network wallet.Network) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.AddCalls++
	if w.AddErr != nil {
		return w.AddErr
	}
	w.Known[network.ChainID] = true
	if !w.StayOnChain {
		w.Active = network.ChainID
	}
	return nil
}

// Backend is not available in the mock; pair it with a mocked gateway.
func (w *Wallet) Backend(ctx context.Context) (wallet.Backend, error) {
	return nil, fmt.Errorf("mock wallet has no backend")
}

func (w *Wallet) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account, Context: ctx}, nil
}

func (w *Wallet) SubscribeEvents(ch chan<- wallet.Event) event.Subscription {
	return w.feed.Subscribe(ch)
}

// Emit pushes a notification to subscribers and returns how many received it.
func (w *Wallet) Emit(ev wallet.Event) int {
	return w.feed.Send(ev)
}

// Disconnect clears the accounts and notifies subscribers.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	w.Accounts = nil
	w.mu.Unlock()
	w.feed.Send(wallet.Event{Kind: wallet.AccountsChanged})
}

// Calls returns the request, switch and add counters.
func (w *Wallet) Calls() (request, switches, adds int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.RequestCalls, w.SwitchCalls, w.AddCalls
}
