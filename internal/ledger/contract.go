package ledger

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

//go:embed library.abi.json
var libraryABI string

var defaultABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(libraryABI))
})

// DefaultABI returns the library contract ABI compiled into the binary
func DefaultABI() (abi.ABI, error) {
	return defaultABI()
}

// ParseABI reads a contract ABI and checks it has the methods the client calls
func ParseABI(r io.Reader) (abi.ABI, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	for _, name := range []string{"getAllBooks", "addBook", "toggleLoan"} {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI has no %s method", name)
		}
	}
	return parsed, nil
}

// bookTuple mirrors the contract's Book struct as decoded by the abi package.
type bookTuple struct {
	Id        *big.Int
	Title     string
	Author    string
	Publisher string
	Year      *big.Int
	OnLoan    bool
	AddedAt   *big.Int
}

func (t bookTuple) toBook() (models.Book, error) {
	for name, v := range map[string]*big.Int{"id": t.Id, "year": t.Year, "addedAt": t.AddedAt} {
		if v == nil || !v.IsUint64() {
			return models.Book{}, fmt.Errorf("book field %s out of range: %v", name, v)
		}
	}
	book := models.Book{
		ID:        t.Id.Uint64(),
		Title:     t.Title,
		Author:    t.Author,
		Publisher: t.Publisher,
		Year:      t.Year.Uint64(),
		OnLoan:    t.OnLoan,
	}
	if secs := t.AddedAt.Uint64(); secs > 0 {
		book.AddedAt = time.Unix(int64(secs), 0).UTC()
	}
	return book, nil
}

// TransactorFunc supplies signing options for each mutating call.
type TransactorFunc func(ctx context.Context) (*bind.TransactOpts, error)

// Contract is a Gateway over a go-ethereum bound contract.
type Contract struct {
	address    common.Address
	bound      *bind.BoundContract
	backend    wallet.Backend
	transactor TransactorFunc
}

// NewContract binds the library contract at address
func NewContract(address common.Address, parsed abi.ABI, backend wallet.Backend, transactor TransactorFunc) *Contract {
	return &Contract{
		address:    address,
		bound:      bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:    backend,
		transactor: transactor,
	}
}

// Dial is the default Dialer: it binds the embedded ABI on the wallet's active network.
func Dial(ctx context.Context, address common.Address, provider wallet.Provider, account common.Address) (Gateway, error) {
	parsed, err := DefaultABI()
	if err != nil {
		return nil, err
	}
	return DialWithABI(parsed)(ctx, address, provider, account)
}

// DialWithABI returns a Dialer binding the given ABI
func DialWithABI(parsed abi.ABI) Dialer {
	return func(ctx context.Context, address common.Address, provider wallet.Provider, account common.Address) (Gateway, error) {
		backend, err := provider.Backend(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to reach network: %w", err)
		}
		transactor := func(ctx context.Context) (*bind.TransactOpts, error) {
			return provider.Transactor(ctx, account)
		}
		return NewContract(address, parsed, backend, transactor), nil
	}
}

func (c *Contract) GetAllBooks(ctx context.Context) ([]models.Book, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getAllBooks"); err != nil {
		return nil, Classify(fmt.Errorf("getAllBooks: %w", err))
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAllBooks: expected 1 output, got %d", len(out))
	}

	rows := *abi.ConvertType(out[0], new([]bookTuple)).(*[]bookTuple)
	books := make([]models.Book, 0, len(rows))
	for _, row := range rows {
		book, err := row.toBook()
		if err != nil {
			return nil, fmt.Errorf("getAllBooks: %w", err)
		}
		books = append(books, book)
	}
	return books, nil
}

func (c *Contract) AddBook(ctx context.Context, title, author, publisher string, year uint64) (PendingTx, error) {
	return c.transact(ctx, "addBook", title, author, publisher, new(big.Int).SetUint64(year))
}

func (c *Contract) ToggleLoan(ctx context.Context, id uint64) (PendingTx, error) {
	return c.transact(ctx, "toggleLoan", new(big.Int).SetUint64(id))
}

func (c *Contract) transact(ctx context.Context, method string, params ...interface{}) (PendingTx, error) {
	opts, err := c.transactor(ctx)
	if err != nil {
		return nil, Classify(fmt.Errorf("%s: %w", method, err))
	}
	tx, err := c.bound.Transact(opts, method, params...)
	if err != nil {
		return nil, Classify(fmt.Errorf("%s: %w", method, err))
	}
	slog.Info("Transaction sent", "method", method, "hash", tx.Hash().Hex(), "contract", c.address.Hex())
	return &pendingTx{tx: tx, backend: c.backend}, nil
}

type pendingTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (p *pendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

// Wait blocks until the transaction is mined and fails with ErrReverted if it did not succeed.
func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return nil, Classify(fmt.Errorf("waiting for %s: %w", p.tx.Hash().Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in block %v", ErrReverted, p.tx.Hash().Hex(), receipt.BlockNumber)
	}
	slog.Info("Transaction confirmed", "hash", p.tx.Hash().Hex(), "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return receipt, nil
}

var _ Gateway = (*Contract)(nil)
