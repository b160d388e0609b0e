package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
)

// KeystoreOptions configures a local keystore wallet
type KeystoreOptions struct {
	Dir        string
	Passphrase string
	// Account selects the key to unlock; the first key is used when empty.
	Account string
	// Networks are the chains the wallet knows before any AddChain call.
	Networks []Network
	// Active is the chain selected at start; defaults to the first known network.
	Active uint64
}

// Keystore is a wallet backed by a go-ethereum encrypted key directory.
// Authorization unlocks the selected key with the configured passphrase.
type Keystore struct {
	ks         *keystore.KeyStore
	passphrase string
	preferred  common.Address

	mu       sync.Mutex
	networks map[uint64]Network
	active   uint64
	clients  map[uint64]*ethclient.Client
	unlocked *accounts.Account

	feed      event.Feed
	walletSub event.Subscription
	quit      chan struct{}
	closeOnce sync.Once
}

// NewKeystore opens the key directory in opts.Dir
func NewKeystore(opts KeystoreOptions) (*Keystore, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: keystore directory not set", ErrNoWallet)
	}
	ks := keystore.NewKeyStore(opts.Dir, keystore.StandardScryptN, keystore.StandardScryptP)
	return NewKeystoreFrom(ks, opts)
}

// NewKeystoreFrom wraps an already opened key store
func NewKeystoreFrom(ks *keystore.KeyStore, opts KeystoreOptions) (*Keystore, error) {
	if opts.Account != "" && !common.IsHexAddress(opts.Account) {
		return nil, fmt.Errorf("invalid wallet account %q", opts.Account)
	}

	k := &Keystore{
		ks:         ks,
		passphrase: opts.Passphrase,
		networks:   make(map[uint64]Network, len(opts.Networks)),
		clients:    make(map[uint64]*ethclient.Client),
		quit:       make(chan struct{}),
	}
	if opts.Account != "" {
		k.preferred = common.HexToAddress(opts.Account)
	}
	for _, n := range opts.Networks {
		k.networks[n.ChainID] = n
	}
	k.active = opts.Active
	if k.active == 0 && len(opts.Networks) > 0 {
		k.active = opts.Networks[0].ChainID
	}

	events := make(chan accounts.WalletEvent, 8)
	k.walletSub = ks.Subscribe(events)
	go k.watch(events)

	return k, nil
}

func (k *Keystore) watch(events chan accounts.WalletEvent) {
	for {
		select {
		case ev := <-events:
			if ev.Kind != accounts.WalletDropped {
				continue
			}
			k.mu.Lock()
			dropped := k.unlocked != nil && ev.Wallet.Contains(*k.unlocked)
			if dropped {
				k.unlocked = nil
			}
			k.mu.Unlock()
			if dropped {
				slog.Info("Unlocked key removed from keystore", "url", ev.Wallet.URL().String())
				k.feed.Send(Event{Kind: AccountsChanged})
			}
		case <-k.walletSub.Err():
			return
		case <-k.quit:
			return
		}
	}
}

func (k *Keystore) selectAccount() (accounts.Account, error) {
	if k.preferred != (common.Address{}) {
		acct, err := k.ks.Find(accounts.Account{Address: k.preferred})
		if err != nil {
			return accounts.Account{}, fmt.Errorf("%w: %s not in keystore", ErrNoAccounts, k.preferred.Hex())
		}
		return acct, nil
	}
	all := k.ks.Accounts()
	if len(all) == 0 {
		return accounts.Account{}, ErrNoAccounts
	}
	return all[0], nil
}

func (k *Keystore) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	acct, err := k.selectAccount()
	if err != nil {
		return nil, err
	}
	if err := k.ks.Unlock(acct, k.passphrase); err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return nil, fmt.Errorf("failed to unlock %s: %w", acct.Address.Hex(), err)
	}

	k.mu.Lock()
	k.unlocked = &acct
	k.mu.Unlock()

	slog.Debug("Keystore account unlocked", "account", acct.Address.Hex())
	return []common.Address{acct.Address}, nil
}

func (k *Keystore) ChainID(ctx context.Context) (*big.Int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active == 0 {
		return nil, fmt.Errorf("%w: no active network", ErrUnrecognizedChain)
	}
	return new(big.Int).SetUint64(k.active), nil
}

func (k *Keystore) SwitchChain(ctx context.Context, chainID *big.Int) error {
	if !chainID.IsUint64() {
		return fmt.Errorf("%w: %s", ErrUnrecognizedChain, chainID)
	}
	id := chainID.Uint64()

	k.mu.Lock()
	_, known := k.networks[id]
	changed := known && k.active != id
	if known {
		k.active = id
	}
	k.mu.Unlock()

	if !known {
		return fmt.Errorf("%w: %#x", ErrUnrecognizedChain, id)
	}
	if changed {
		k.feed.Send(Event{Kind: ChainChanged, ChainID: new(big.Int).Set(chainID)})
	}
	return nil
}

func (k *Keystore) AddChain(ctx context.Context, network Network) error {
	if network.ChainID == 0 {
		return errors.New("network definition has no chain id")
	}
	if len(network.RPCURLs) == 0 {
		return fmt.Errorf("network %s has no rpc url", network.Name)
	}

	k.mu.Lock()
	k.networks[network.ChainID] = network
	changed := k.active != network.ChainID
	k.active = network.ChainID
	k.mu.Unlock()

	slog.Info("Network added to keystore wallet", "name", network.Name, "chain_id", network.ChainID)
	if changed {
		k.feed.Send(Event{Kind: ChainChanged, ChainID: network.ChainIDBig()})
	}
	return nil
}

func (k *Keystore) Backend(ctx context.Context) (Backend, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if client, ok := k.clients[k.active]; ok {
		return client, nil
	}
	network, ok := k.networks[k.active]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnrecognizedChain, k.active)
	}
	if len(network.RPCURLs) == 0 {
		return nil, fmt.Errorf("network %s has no rpc url", network.Name)
	}

	client, err := ethclient.DialContext(ctx, network.RPCURLs[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", network.Name, err)
	}
	k.clients[k.active] = client
	return client, nil
}

func (k *Keystore) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	k.mu.Lock()
	unlocked := k.unlocked
	active := k.active
	k.mu.Unlock()

	if unlocked == nil || unlocked.Address != account {
		return nil, fmt.Errorf("%w: %s is locked", ErrUserRejected, account.Hex())
	}
	opts, err := bind.NewKeyStoreTransactorWithChainID(k.ks, *unlocked, new(big.Int).SetUint64(active))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (k *Keystore) SubscribeEvents(ch chan<- Event) event.Subscription {
	return k.feed.Subscribe(ch)
}

// Lock forgets the unlocked key and tells subscribers the account is gone.
func (k *Keystore) Lock() error {
	k.mu.Lock()
	unlocked := k.unlocked
	k.unlocked = nil
	k.mu.Unlock()

	if unlocked == nil {
		return nil
	}
	if err := k.ks.Lock(unlocked.Address); err != nil {
		return fmt.Errorf("failed to lock %s: %w", unlocked.Address.Hex(), err)
	}
	k.feed.Send(Event{Kind: AccountsChanged})
	return nil
}

// Close stops the keystore watcher and closes network clients.
func (k *Keystore) Close() {
	k.closeOnce.Do(func() {
		close(k.quit)
		k.walletSub.Unsubscribe()

		k.mu.Lock()
		defer k.mu.Unlock()
		for id, client := range k.clients {
			client.Close()
			delete(k.clients, id)
		}
	})
}
