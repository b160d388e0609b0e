// Package ledger calls the library contract that stores the book catalog.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

// PlaceholderAddress is the value shipped in sample configuration before a
// contract is deployed.
const PlaceholderAddress = "YOUR_CONTRACT_ADDRESS_HERE"

var (
	// ErrNotConfigured means the contract address is missing, a placeholder or invalid.
	ErrNotConfigured = errors.New("contract address not configured")
	// ErrInsufficientFunds means the account cannot pay for the transaction.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrReverted means the transaction was mined but failed.
	ErrReverted = errors.New("transaction reverted")
)

// Gateway is the deployed library contract as seen by the client.
type Gateway interface {
	GetAllBooks(ctx context.Context) ([]models.Book, error)
	AddBook(ctx context.Context, title, author, publisher string, year uint64) (PendingTx, error)
	ToggleLoan(ctx context.Context, id uint64) (PendingTx, error)
}

// PendingTx is a submitted transaction awaiting confirmation.
type PendingTx interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*types.Receipt, error)
}

// Dialer binds a gateway to the contract at address, signing as account.
type Dialer func(ctx context.Context, address common.Address, provider wallet.Provider, account common.Address) (Gateway, error)

// ParseAddress validates the configured contract address
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == PlaceholderAddress {
		return common.Address{}, ErrNotConfigured
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not a hex address", ErrNotConfigured, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrNotConfigured)
	}
	return addr, nil
}

// IsConfigured reports whether s names a usable contract address
func IsConfigured(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

// Classify maps node and wallet failures onto the package error kinds.
// Errors that match no kind are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrReverted) || errors.Is(err, wallet.ErrUserRejected) {
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == wallet.CodeUserRejected {
		return fmt.Errorf("%w: %v", wallet.ErrUserRejected, err)
	}
	if errors.Is(err, bind.ErrNoCode) {
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "user rejected"), strings.Contains(lower, "user denied"):
		return fmt.Errorf("%w: %v", wallet.ErrUserRejected, err)
	case strings.Contains(lower, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case strings.Contains(msg, "ENS"), strings.Contains(lower, "invalid address"):
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return err
}
