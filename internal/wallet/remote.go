package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

const defaultPollInterval = 2 * time.Second

// Remote is an external wallet reached over JSON-RPC. It speaks the same
// request methods browser wallets expose (eth_requestAccounts,
// wallet_switchEthereumChain, wallet_addEthereumChain) and signs with
// eth_signTransaction. Account and network changes are detected by polling.
type Remote struct {
	client *rpc.Client
	eth    *ethclient.Client

	feed   event.Feed
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	accounts []common.Address
	chainID  *big.Int
}

// DialRemote connects to the wallet endpoint and starts watching it for changes.
func DialRemote(ctx context.Context, url string, pollInterval time.Duration) (*Remote, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: remote wallet url not set", ErrNoWallet)
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWallet, err)
	}
	return NewRemote(client, pollInterval), nil
}

// NewRemote wraps an rpc client connected to a wallet
func NewRemote(client *rpc.Client, pollInterval time.Duration) *Remote {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Remote{
		client: client,
		eth:    ethclient.NewClient(client),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.poll(ctx, pollInterval)
	return r
}

// walletError maps the wallet JSON-RPC error codes onto the package errors.
func walletError(method string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case CodeUserRejected:
			return fmt.Errorf("%s: %w: %v", method, ErrUserRejected, err)
		case CodeUnrecognizedChain:
			return fmt.Errorf("%s: %w: %v", method, ErrUnrecognizedChain, err)
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "user rejected") {
		return fmt.Errorf("%s: %w: %v", method, ErrUserRejected, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}

func (r *Remote) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accs []common.Address
	if err := r.client.CallContext(ctx, &accs, "eth_requestAccounts"); err != nil {
		return nil, walletError("eth_requestAccounts", err)
	}
	if len(accs) == 0 {
		return nil, ErrNoAccounts
	}
	r.mu.Lock()
	r.accounts = accs
	r.mu.Unlock()
	return accs, nil
}

func (r *Remote) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := r.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, walletError("eth_chainId", err)
	}
	r.mu.Lock()
	r.chainID = id.ToInt()
	r.mu.Unlock()
	return id.ToInt(), nil
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

func (r *Remote) SwitchChain(ctx context.Context, chainID *big.Int) error {
	params := switchChainParams{ChainID: hexutil.EncodeBig(chainID)}
	err := r.client.CallContext(ctx, nil, "wallet_switchEthereumChain", params)
	return walletError("wallet_switchEthereumChain", err)
}

type addChainParams struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls,omitempty"`
}

func (r *Remote) AddChain(ctx context.Context, network Network) error {
	params := addChainParams{
		ChainID:           network.HexChainID(),
		ChainName:         network.Name,
		NativeCurrency:    network.Currency,
		RPCURLs:           network.RPCURLs,
		BlockExplorerURLs: network.ExplorerURLs,
	}
	err := r.client.CallContext(ctx, nil, "wallet_addEthereumChain", params)
	return walletError("wallet_addEthereumChain", err)
}

// Backend returns a client that sends chain reads and raw transactions
// through the wallet endpoint.
func (r *Remote) Backend(ctx context.Context) (Backend, error) {
	return r.eth, nil
}

func (r *Remote) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From:    account,
		Context: ctx,
		Signer: func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return r.signTransaction(ctx, from, tx)
		},
	}, nil
}

type signTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

type signTxResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

func (r *Remote) signTransaction(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error) {
	args := signTxArgs{
		From:  from,
		To:    tx.To(),
		Gas:   hexutil.Uint64(tx.Gas()),
		Value: (*hexutil.Big)(tx.Value()),
		Nonce: hexutil.Uint64(tx.Nonce()),
		Data:  tx.Data(),
	}
	if tx.Type() == types.DynamicFeeTxType {
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
		args.ChainID = (*hexutil.Big)(tx.ChainId())
	} else {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}

	var res signTxResult
	if err := r.client.CallContext(ctx, &res, "eth_signTransaction", args); err != nil {
		return nil, walletError("eth_signTransaction", err)
	}
	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(res.Raw); err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	if signed.Hash() == tx.Hash() {
		return nil, errors.New("wallet returned an unsigned transaction")
	}
	return signed, nil
}

func (r *Remote) SubscribeEvents(ch chan<- Event) event.Subscription {
	return r.feed.Subscribe(ch)
}

func (r *Remote) poll(ctx context.Context, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

// check compares the wallet's current accounts and chain with the last seen
// values and emits an event for each difference.
func (r *Remote) check(ctx context.Context) {
	var accs []common.Address
	if err := r.client.CallContext(ctx, &accs, "eth_accounts"); err != nil {
		slog.Debug("Remote wallet poll failed", "method", "eth_accounts", "err", err)
		return
	}
	var id hexutil.Big
	if err := r.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		slog.Debug("Remote wallet poll failed", "method", "eth_chainId", "err", err)
		return
	}

	r.mu.Lock()
	accountsChanged := !sameAccounts(r.accounts, accs)
	chainChanged := r.chainID != nil && r.chainID.Cmp(id.ToInt()) != 0
	r.accounts = accs
	r.chainID = id.ToInt()
	r.mu.Unlock()

	if accountsChanged {
		r.feed.Send(Event{Kind: AccountsChanged, Accounts: accs})
	}
	if chainChanged {
		r.feed.Send(Event{Kind: ChainChanged, ChainID: id.ToInt()})
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close stops polling and closes the connection.
func (r *Remote) Close() {
	r.cancel()
	<-r.done
	r.client.Close()
}
