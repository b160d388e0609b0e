// Package mock provides an in-memory library contract with call counters and
// failure injection.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lehigh-university-libraries/bookledger/internal/ledger"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

// Mock implements ledger.Gateway over a slice of books. Mutations are applied
// when the pending transaction is awaited, like a block being mined. Reads and
// waits fail on a done context; submissions ignore it.
type Mock struct {
	mu    sync.Mutex
	books []models.Book
	now   func() time.Time
	nonce uint64

	// Err* fail the corresponding call before any state change.
	ErrGetAll error
	ErrAdd    error
	ErrToggle error
	// ErrWait fails the confirmation wait of every pending transaction.
	ErrWait error

	GetAllCalls int
	AddCalls    int
	ToggleCalls int
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for addedAt.
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithBooks seeds the catalog.
func WithBooks(books ...models.Book) Option {
	return func(m *Mock) {
		m.books = append(m.books, books...)
	}
}

// New creates an empty mock contract.
func New(opts ...Option) *Mock {
	m := &Mock{
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Second)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dialer returns a ledger.Dialer that always hands out this mock.
func (m *Mock) Dialer() ledger.Dialer {
	return func(ctx context.Context, address common.Address, provider wallet.Provider, account common.Address) (ledger.Gateway, error) {
		return m, nil
	}
}

func (m *Mock) GetAllBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetAllCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ErrGetAll != nil {
		return nil, m.ErrGetAll
	}
	return append([]models.Book(nil), m.books...), nil
}

func (m *Mock) AddBook(ctx context.Context, title, author, publisher string, year uint64) (ledger.PendingTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	if m.ErrAdd != nil {
		return nil, m.ErrAdd
	}
	return m.pending(func() {
		m.books = append(m.books, models.Book{
			ID:        uint64(len(m.books)),
			Title:     title,
			Author:    author,
			Publisher: publisher,
			Year:      year,
			AddedAt:   m.now(),
		})
	}), nil
}

func (m *Mock) ToggleLoan(ctx context.Context, id uint64) (ledger.PendingTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ToggleCalls++
	if m.ErrToggle != nil {
		return nil, m.ErrToggle
	}
	if id >= uint64(len(m.books)) {
		return nil, fmt.Errorf("execution reverted: book %d does not exist", id)
	}
	return m.pending(func() {
		m.books[id].OnLoan = !m.books[id].OnLoan
	}), nil
}

// Books returns the current catalog without counting a call.
func (m *Mock) Books() []models.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Book(nil), m.books...)
}

// Counts returns the getAll, add and toggle call counters.
func (m *Mock) Counts() (getAll, add, toggle int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetAllCalls, m.AddCalls, m.ToggleCalls
}

func (m *Mock) pending(apply func()) *pendingTx {
	m.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], m.nonce)
	return &pendingTx{mock: m, hash: common.Hash(sha256.Sum256(buf[:])), apply: apply}
}

type pendingTx struct {
	mock  *Mock
	hash  common.Hash
	apply func()
	once  sync.Once
}

func (p *pendingTx) Hash() common.Hash {
	return p.hash
}

func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	p.mock.mu.Lock()
	defer p.mock.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.mock.ErrWait != nil {
		return nil, p.mock.ErrWait
	}
	p.once.Do(p.apply)
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      p.hash,
		BlockNumber: new(big.Int).SetUint64(p.mock.nonce),
	}, nil
}

var _ ledger.Gateway = (*Mock)(nil)
