package models

import (
	"strconv"
	"time"
)

// Book is a snapshot of one record held by the library contract
type Book struct {
	ID        uint64    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Author    string    `json:"author" yaml:"author"`
	Publisher string    `json:"publisher" yaml:"publisher"`
	Year      uint64    `json:"year" yaml:"year"`
	OnLoan    bool      `json:"on_loan" yaml:"on_loan"`
	AddedAt   time.Time `json:"added_at" yaml:"added_at"`
}

// StatusLabel is the loan status shown next to a book
func (b Book) StatusLabel() string {
	if b.OnLoan {
		return "On loan"
	}
	return "Available"
}

// ToggleLabel is the label of the action that flips the loan status
func (b Book) ToggleLabel() string {
	if b.OnLoan {
		return "Mark as available"
	}
	return "Mark as on loan"
}

// AddedDate formats the time the book was added to the ledger
func (b Book) AddedDate() string {
	if b.AddedAt.IsZero() {
		return "-"
	}
	return b.AddedAt.Format("January 2, 2006")
}

// Draft is the add-book form buffer. Year is kept as typed.
type Draft struct {
	Title     string `json:"title" yaml:"title"`
	Author    string `json:"author" yaml:"author"`
	Publisher string `json:"publisher" yaml:"publisher"`
	Year      string `json:"year" yaml:"year"`
}

// IsZero reports whether every field of the form is empty
func (d Draft) IsZero() bool {
	return d == Draft{}
}

// DraftFromBook fills a form from an existing record
func DraftFromBook(b Book) Draft {
	return Draft{
		Title:     b.Title,
		Author:    b.Author,
		Publisher: b.Publisher,
		Year:      strconv.FormatUint(b.Year, 10),
	}
}

// State is what every front end renders
type State struct {
	Account   string `json:"account,omitempty"`
	Connected bool   `json:"connected"`
	ChainID   uint64 `json:"chain_id,omitempty"`
	Books     []Book `json:"books"`
	Draft     Draft  `json:"draft"`
	Busy      bool   `json:"busy"`
	Error     string `json:"error,omitempty"`
	Notice    string `json:"notice,omitempty"`
}

// ShortAccount abbreviates the connected address as 0x1234...abcd
func (s State) ShortAccount() string {
	return ShortAddress(s.Account)
}

// ShortAddress abbreviates a hex address, leaving short strings untouched
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
