// Package wallet connects the client to the account that signs ledger transactions.
//
// A Provider hands out accounts after authorization, reports and switches the active
// network, and pushes account and network changes to subscribers.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// JSON-RPC error codes wallets use for the cases the client reacts to.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

var (
	// ErrNoWallet is returned when no wallet is configured or reachable.
	ErrNoWallet = errors.New("no wallet available")
	// ErrUserRejected is returned when the account holder declines a request.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrUnrecognizedChain is returned when switching to a network the wallet does not know.
	ErrUnrecognizedChain = errors.New("unrecognized chain")
	// ErrNoAccounts is returned when the wallet holds no account to authorize.
	ErrNoAccounts = errors.New("wallet has no accounts")
)

// Backend is what contract calls need from the active network.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Provider is the capability set the session controller uses.
type Provider interface {
	// RequestAccounts asks the holder to authorize the client and returns the accounts.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// ChainID returns the active network.
	ChainID(ctx context.Context) (*big.Int, error)
	// SwitchChain makes a known network active.
	SwitchChain(ctx context.Context, chainID *big.Int) error
	// AddChain registers a network definition and makes it active.
	AddChain(ctx context.Context, network Network) error
	// Backend returns a client for the active network.
	Backend(ctx context.Context) (Backend, error)
	// Transactor returns signing options for account on the active network.
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
	// SubscribeEvents delivers account and network changes until unsubscribed.
	SubscribeEvents(ch chan<- Event) event.Subscription
}

// EventKind tells what changed in the wallet
type EventKind int

const (
	AccountsChanged EventKind = iota
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a change notification pushed by the wallet.
// Accounts is empty when the holder disconnected.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

// Currency describes the native token of a network
type Currency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// Network is the definition a wallet needs to add a chain
type Network struct {
	ChainID      uint64   `yaml:"chain_id"`
	Name         string   `yaml:"name"`
	Currency     Currency `yaml:"currency"`
	RPCURLs      []string `yaml:"rpc_urls"`
	ExplorerURLs []string `yaml:"explorer_urls"`
}

// ChainIDBig returns the chain id as used by go-ethereum
func (n Network) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

// HexChainID returns the chain id in the 0x form wallet methods expect
func (n Network) HexChainID() string {
	return fmt.Sprintf("%#x", n.ChainID)
}

// Sepolia is the test network the library contract is deployed on.
func Sepolia() Network {
	return Network{
		ChainID: 11155111,
		Name:    "Sepolia",
		Currency: Currency{
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURLs:      []string{"https://sepolia.infura.io/v3/"},
		ExplorerURLs: []string{"https://sepolia.etherscan.io"},
	}
}
