package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookledger/internal/ledger"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

var (
	ErrNotConnected    = errors.New("wallet not connected")
	ErrBusy            = errors.New("another operation is in progress")
	ErrIncompleteDraft = errors.New("all fields are required")
	ErrInvalidYear     = errors.New("year must be a whole number")
	ErrWrongNetwork    = errors.New("wrong network")
)

// UserError carries the message shown to the user along with its cause.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

const (
	opConnect = "connect"
	opFetch   = "fetch"
	opAdd     = "add"
	opToggle  = "toggle"
)

// describe turns an operation failure into the text shown to the user.
func describe(op string, network wallet.Network, err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return "Another operation is in progress. Wait for it to finish."
	case errors.Is(err, wallet.ErrNoWallet):
		return "No wallet found. Configure a keystore or remote wallet to continue."
	case errors.Is(err, wallet.ErrNoAccounts):
		return "The wallet has no accounts to connect."
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first."
	case errors.Is(err, ErrWrongNetwork):
		return fmt.Sprintf("Please switch your wallet to the %s network manually.", network.Name)
	case errors.Is(err, ErrIncompleteDraft):
		return "Please fill in all fields."
	case errors.Is(err, ErrInvalidYear):
		return "The publication year must be a whole number."
	}

	// wallet and node errors arrive raw
	err = ledger.Classify(err)

	switch {
	case errors.Is(err, ledger.ErrNotConfigured):
		return fmt.Sprintf("IMPORTANT: set the library contract address (contract.address or BOOKLEDGER_CONTRACT) to your contract deployed on %s.", network.Name)
	case errors.Is(err, wallet.ErrUserRejected):
		if op == opConnect {
			return "The connection request was rejected in the wallet."
		}
		return "Transaction cancelled by the user."
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fmt.Sprintf("Not enough %s to pay for the transaction. You need %s %s.",
			network.Currency.Symbol, network.Name, network.Currency.Symbol)
	}

	switch op {
	case opConnect:
		return "Error connecting to the wallet: " + err.Error()
	case opFetch:
		return "Error loading books: " + err.Error()
	case opAdd:
		return "Error adding the book: " + err.Error()
	case opToggle:
		return "Error changing the loan status: " + err.Error()
	default:
		return err.Error()
	}
}

// ValidateDraft trims the form and parses the year. Every field is required.
func ValidateDraft(d models.Draft) (models.Draft, uint64, error) {
	d = models.Draft{
		Title:     strings.TrimSpace(d.Title),
		Author:    strings.TrimSpace(d.Author),
		Publisher: strings.TrimSpace(d.Publisher),
		Year:      strings.TrimSpace(d.Year),
	}
	if d.Title == "" || d.Author == "" || d.Publisher == "" || d.Year == "" {
		return d, 0, ErrIncompleteDraft
	}
	year, err := strconv.ParseUint(d.Year, 10, 64)
	if err != nil {
		return d, 0, fmt.Errorf("%w: %q", ErrInvalidYear, d.Year)
	}
	return d, year, nil
}
