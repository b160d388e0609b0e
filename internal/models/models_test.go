package models

import (
	"testing"
	"time"
)

func TestShortAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x5FbDB2315678afecb367f032d93F642f64180aa3", "0x5FbD...0aa3"},
		{"0x1234", "0x1234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortAddress(tt.in); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestBookLabels(t *testing.T) {
	b := Book{Title: "Ficciones", Year: 1944, AddedAt: time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)}
	if b.StatusLabel() != "Available" || b.ToggleLabel() != "Mark as on loan" {
		t.Errorf("Unexpected labels for available book: %s, %s", b.StatusLabel(), b.ToggleLabel())
	}
	if b.AddedDate() != "March 5, 2024" {
		t.Errorf("Expected March 5, 2024, got %s", b.AddedDate())
	}

	b.OnLoan = true
	b.AddedAt = time.Time{}
	if b.StatusLabel() != "On loan" || b.ToggleLabel() != "Mark as available" {
		t.Errorf("Unexpected labels for book on loan: %s, %s", b.StatusLabel(), b.ToggleLabel())
	}
	if b.AddedDate() != "-" {
		t.Errorf("Expected - for unknown date, got %s", b.AddedDate())
	}

	if d := DraftFromBook(b); d.Year != "1944" || d.Title != "Ficciones" {
		t.Errorf("Unexpected draft %+v", d)
	}
}
